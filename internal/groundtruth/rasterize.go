package groundtruth

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/flood-cli/internal/raster"
)

// Rasterize marks the cells of g whose centre lies inside mp: within a
// polygon's outer ring and outside all of its holes.
func Rasterize(g raster.Grid, mp *geom.MultiPolygon) raster.Mask {
	m := raster.NewMask(g)
	if mp == nil || mp.NumPolygons() == 0 {
		return m
	}

	b := mp.Bounds()
	r0, c0 := clampCell(g, b.Min(0), b.Max(1))
	r1, c1 := clampCell(g, b.Max(0), b.Min(1))
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			cell := raster.Cell{Row: r, Col: c}
			x, y := g.Center(cell)
			if covers(mp, geom.Coord{x, y}) {
				m.Bits[g.Index(cell)] = true
			}
		}
	}
	return m
}

// RasterizeAll ORs the rasterisation of every feature.
func RasterizeAll(g raster.Grid, features []Feature) raster.Mask {
	m := raster.NewMask(g)
	for _, f := range features {
		fm := Rasterize(g, f.Geometry)
		for i, b := range fm.Bits {
			m.Bits[i] = m.Bits[i] || b
		}
	}
	return m
}

func covers(mp *geom.MultiPolygon, pt geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 || !xy.IsPointInRing(geom.XY, pt, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for j := 1; j < p.NumLinearRings(); j++ {
			if xy.IsPointInRing(geom.XY, pt, p.LinearRing(j).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// clampCell returns the cell containing (x, y), clamped onto the grid.
func clampCell(g raster.Grid, x, y float64) (row, col int) {
	col = int(math.Floor((x - g.OriginX) / g.CellSize))
	row = int(math.Floor((g.OriginY - y) / g.CellSize))
	return min(max(row, 0), g.Height-1), min(max(col, 0), g.Width-1)
}
