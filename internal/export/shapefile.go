package export

import (
	"context"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/flood-cli/internal/region"
)

// ShapefileSink writes {key}.shp/.shx/.dbf with one polygon per region.
type ShapefileSink struct {
	Dir string
}

func (s *ShapefileSink) Name() string { return FormatShapefile }

var shapeFields = []shp.Field{
	shp.NumberField("ID", 10),
	shp.FloatField("AREA_M2", 18, 2),
	shp.NumberField("CELLS", 10),
	shp.NumberField("YEAR", 4),
	shp.NumberField("PERIOD", 3),
	shp.FloatField("THRESH", 8, 3),
	shp.FloatField("PERENNIAL", 6, 3),
	shp.FloatField("WEEKFREQ", 6, 3),
	shp.FloatField("YEARFREQ", 6, 3),
}

func (s *ShapefileSink) Write(_ context.Context, set region.Set, meta Meta) error {
	feats, err := features(set)
	if err != nil {
		return err
	}
	if err := ensureDir(s.Dir); err != nil {
		return err
	}

	w, err := shp.Create(path(s.Dir, meta.Key, ".shp"), shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", meta.Key)
	}
	defer w.Close()
	w.SetFields(shapeFields)

	for _, f := range feats {
		poly := toShape(f.Geometry)
		row := int(w.Write(poly))
		values := []any{
			f.ID, f.Area, f.Cells,
			meta.Selection.Year, meta.Selection.Index,
			meta.Params.Threshold, meta.Params.PerennialThreshold, meta.Params.WeekFreq, meta.Params.YearFreq,
		}
		for i, v := range values {
			w.WriteAttribute(row, i, v)
		}
	}
	return nil
}

// toShape converts mp into one multi-part shapefile polygon. Every ring is
// reversed: outer rings become clockwise and holes counter-clockwise.
func toShape(mp *geom.MultiPolygon) *shp.Polygon {
	var parts [][]shp.Point
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for r := 0; r < p.NumLinearRings(); r++ {
			ring := p.LinearRing(r).FlatCoords()
			n := len(ring) / 2
			pts := make([]shp.Point, n)
			for j := 0; j < n; j++ {
				k := n - 1 - j
				pts[j] = shp.Point{X: ring[2*k], Y: ring[2*k+1]}
			}
			parts = append(parts, pts)
		}
	}
	poly := shp.Polygon(*shp.NewPolyLine(parts))
	return &poly
}
