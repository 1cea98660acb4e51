// Package export writes region sets and sweep reports to files and tables.
package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/pipeline"
	"github.com/sells-group/flood-cli/internal/region"
)

// Region formats.
const (
	FormatShapefile = "shapefile"
	FormatCSV       = "csv"
	FormatEWKB      = "ewkb"
)

// Report formats.
const (
	FormatXLSX = "xlsx"
	FormatYAML = "yaml"
)

// Meta describes the run that produced a region set.
type Meta struct {
	Key       string
	Selection model.PeriodKey
	Params    model.Params
}

// MetaFor returns the metadata of a pipeline result keyed "{year}_biweek_{index}".
func MetaFor(res *pipeline.Result) Meta {
	return Meta{Key: res.Key(), Selection: res.Selection, Params: res.Params}
}

// Sink persists one region set.
type Sink interface {
	Name() string
	Write(ctx context.Context, set region.Set, meta Meta) error
}

// NewSinks returns file sinks writing under dir for the region formats in
// formats. Report formats are ignored here; unknown formats are an error.
func NewSinks(dir string, formats []string) ([]Sink, error) {
	var sinks []Sink
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatShapefile:
			sinks = append(sinks, &ShapefileSink{Dir: dir})
		case FormatCSV:
			sinks = append(sinks, &CSVSink{Dir: dir})
		case FormatEWKB:
			sinks = append(sinks, &EWKBSink{Dir: dir})
		case FormatXLSX, FormatYAML:
		default:
			return nil, eris.Errorf("export: unknown format %q", f)
		}
	}
	return sinks, nil
}

// WriteAll hands set to every sink, stopping at the first failure.
func WriteAll(ctx context.Context, sinks []Sink, set region.Set, meta Meta) error {
	for _, s := range sinks {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "export: cancelled")
		}
		if err := s.Write(ctx, set, meta); err != nil {
			return eris.Wrapf(err, "export: %s sink", s.Name())
		}
		zap.L().Debug("export: wrote regions",
			zap.String("sink", s.Name()),
			zap.String("key", meta.Key),
			zap.Int("regions", set.Len()),
		)
	}
	return nil
}

// feature is one region with its outline and summary values.
type feature struct {
	ID       int
	Area     float64
	Cells    int
	CX, CY   float64
	Geometry *geom.MultiPolygon
}

func features(set region.Set) ([]feature, error) {
	out := make([]feature, 0, set.Len())
	for _, r := range set.Regions {
		mp, err := set.Polygon(r)
		if err != nil {
			return nil, err
		}
		var sx, sy float64
		for _, c := range r.Cells {
			x, y := set.Grid.Center(c)
			sx += x
			sy += y
		}
		n := float64(max(len(r.Cells), 1))
		out = append(out, feature{ID: r.ID, Area: r.Area, Cells: len(r.Cells), CX: sx / n, CY: sy / n, Geometry: mp})
	}
	return out, nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "export: create %s", dir)
}

func path(dir, key, ext string) string {
	return filepath.Join(dir, key+ext)
}
