// Package groundtruth loads reference flood extents from shapefiles or
// raster CSV grids and turns them into area-filtered truth regions.
package groundtruth

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// Feature is one shapefile record.
type Feature struct {
	Name     string
	Attrs    map[string]string
	Geometry *geom.MultiPolygon
}

// ReadShapefile reads polygon features from path. nameField selects the
// attribute copied into Feature.Name (case-insensitive); it may be empty.
// Non-polygon shapes are skipped.
func ReadShapefile(path, nameField string, srid int) ([]Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "groundtruth: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var out []Feature
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := toMultiPolygon(poly, srid)
		if mp == nil {
			skipped++
			continue
		}

		f := Feature{Attrs: make(map[string]string, len(names)), Geometry: mp}
		for i, n := range names {
			v := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			f.Attrs[n] = v
			if nameField != "" && strings.EqualFold(n, nameField) {
				f.Name = v
			}
		}
		out = append(out, f)
	}
	if skipped > 0 {
		zap.L().Debug("groundtruth: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return out, nil
}

// toMultiPolygon assembles the parts of p into polygons. Shapefile outer
// rings wind clockwise and holes counter-clockwise; each hole joins the first
// outer ring containing its first vertex. A hole with no container becomes a
// polygon of its own.
func toMultiPolygon(p *shp.Polygon, srid int) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var outers, holes [][]float64
	for i := int32(0); i < p.NumParts; i++ {
		start, end := p.Parts[i], int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		if xy.IsRingCounterClockwise(geom.XY, flat) {
			holes = append(holes, flat)
		} else {
			outers = append(outers, flat)
		}
	}

	rings := make([][][]float64, len(outers))
	for i, o := range outers {
		rings[i] = [][]float64{o}
	}
	for _, h := range holes {
		pt := geom.Coord{h[0], h[1]}
		placed := false
		for i, o := range outers {
			if xy.IsPointInRing(geom.XY, pt, o) {
				rings[i] = append(rings[i], h)
				placed = true
				break
			}
		}
		if !placed {
			rings = append(rings, [][]float64{h})
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	if srid != 0 {
		mp.SetSRID(srid)
	}
	for i, rs := range rings {
		var flat []float64
		ends := make([]int, 0, len(rs))
		for _, r := range rs {
			flat = append(flat, r...)
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			zap.L().Debug("groundtruth: skipping malformed polygon", zap.Int("polygon", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
