package groundtruth

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/enrich"
	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
)

// DefaultMinAreaSqm drops truth fragments below 30 ha.
const DefaultMinAreaSqm = 300000

// Options configures Load.
type Options struct {
	Path       string  // local path or http(s)/ftp URL; .zip archives are extracted
	Dir        string  // download directory for remote inputs
	MinAreaSqm float64 // region area filter; 0 uses DefaultMinAreaSqm
	Value      float64 // raster CSV cell value meaning flooded
	NameField  string  // shapefile attribute holding the feature name
}

// Truth is preprocessed ground truth on the evaluation grid.
type Truth struct {
	Mask     raster.Mask
	Regions  region.Set
	Features []Feature // empty for raster input
}

// Load fetches and reads the truth input, then runs Prepare. Shapefiles
// are rasterised onto grid; .csv inputs are read as a matrix on grid.
func Load(ctx context.Context, res *fetcher.Resolver, grid raster.Grid, opts Options) (*Truth, error) {
	if opts.Path == "" {
		return nil, eris.New("groundtruth: no truth path configured")
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	paths, err := res.Fetch(ctx, opts.Path, opts.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: fetch")
	}

	log := zap.L().With(zap.String("path", opts.Path))
	var (
		raw      raster.Mask
		features []Feature
	)
	if p, ok := fetcher.FindExt(paths, ".shp"); ok {
		features, err = ReadShapefile(p, opts.NameField, grid.SRID)
		if err != nil {
			return nil, err
		}
		raw = RasterizeAll(grid, features)
		log.Info("groundtruth: loaded shapefile", zap.Int("features", len(features)), zap.Int("cells", raw.Count()))
	} else if p, ok := fetcher.FindExt(paths, ".csv"); ok {
		raw, err = OpenGridCSV(ctx, p, grid, opts.Value)
		if err != nil {
			return nil, err
		}
		log.Info("groundtruth: loaded csv grid", zap.Int("cells", raw.Count()))
	} else {
		return nil, eris.Errorf("groundtruth: no .shp or .csv in %s", strings.Join(baseNames(paths), ", "))
	}

	t, err := Prepare(raw, opts.MinAreaSqm)
	if err != nil {
		return nil, err
	}
	t.Features = features
	return t, nil
}

// Prepare labels the raw truth mask without dilation, drops regions below
// minAreaSqm and paints the survivors back onto the mask's grid.
func Prepare(raw raster.Mask, minAreaSqm float64) (*Truth, error) {
	if minAreaSqm <= 0 {
		minAreaSqm = DefaultMinAreaSqm
	}
	set, err := region.ExtractMask(raw, region.Options{MinAreaSqm: minAreaSqm})
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: extract regions")
	}
	mask := set.Rasterize(raw.Grid)
	zap.L().Debug("groundtruth: prepared",
		zap.Int("raw_cells", raw.Count()),
		zap.Int("regions", set.Len()),
		zap.Int("cells", mask.Count()),
	)
	return &Truth{Mask: mask, Regions: set}, nil
}

// Polygons converts named features into sampling polygons for enrichment.
// Features that cover no grid cell are dropped.
func Polygons(grid raster.Grid, features []Feature) []enrich.Polygon {
	out := make([]enrich.Polygon, 0, len(features))
	for _, f := range features {
		m := Rasterize(grid, f.Geometry)
		if m.Empty() {
			zap.L().Debug("groundtruth: feature outside grid", zap.String("name", f.Name))
			continue
		}
		out = append(out, enrich.Polygon{Name: f.Name, Mask: m, AreaM2: f.Geometry.Area()})
	}
	return out
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
