// Package raster provides the grid geometry and per-cell containers used by the
// classification pipeline. Coordinates are planar metres in the grid's SRID.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Cell addresses a grid location by row (top to bottom) and column.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid describes a north-up raster: the upper-left corner, a square cell size
// and the dimensions.
type Grid struct {
	OriginX  float64 `json:"origin_x" mapstructure:"origin_x"`
	OriginY  float64 `json:"origin_y" mapstructure:"origin_y"`
	CellSize float64 `json:"cell_size" mapstructure:"cell_size"`
	Width    int     `json:"width" mapstructure:"width"`
	Height   int     `json:"height" mapstructure:"height"`
	SRID     int     `json:"srid" mapstructure:"srid"`
}

// Validate checks the grid is usable.
func (g Grid) Validate() error {
	if g.CellSize <= 0 {
		return eris.Errorf("raster: cell size %v must be positive", g.CellSize)
	}
	if g.Width <= 0 || g.Height <= 0 {
		return eris.Errorf("raster: invalid dimensions %dx%d", g.Width, g.Height)
	}
	return nil
}

// Len returns the number of cells.
func (g Grid) Len() int { return g.Width * g.Height }

// Index returns the flat index of c.
func (g Grid) Index(c Cell) int { return c.Row*g.Width + c.Col }

// Cell returns the cell at flat index i.
func (g Grid) Cell(i int) Cell { return Cell{Row: i / g.Width, Col: i % g.Width} }

// Contains reports whether c lies inside the grid.
func (g Grid) Contains(c Cell) bool {
	return c.Row >= 0 && c.Row < g.Height && c.Col >= 0 && c.Col < g.Width
}

// CellArea returns the planar area of one cell in square metres.
func (g Grid) CellArea() float64 { return g.CellSize * g.CellSize }

// Center returns the planar coordinates of the centre of c.
func (g Grid) Center(c Cell) (x, y float64) {
	return g.OriginX + (float64(c.Col)+0.5)*g.CellSize,
		g.OriginY - (float64(c.Row)+0.5)*g.CellSize
}

// CellAt returns the cell containing the point, if any.
func (g Grid) CellAt(x, y float64) (Cell, bool) {
	col := int(math.Floor((x - g.OriginX) / g.CellSize))
	row := int(math.Floor((g.OriginY - y) / g.CellSize))
	c := Cell{Row: row, Col: col}
	return c, g.Contains(c)
}

// Bounds returns the planar extent of the grid.
func (g Grid) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(
		g.OriginX, g.OriginY-float64(g.Height)*g.CellSize,
		g.OriginX+float64(g.Width)*g.CellSize, g.OriginY,
	)
}

// CellPolygon returns the square outline of c.
func (g Grid) CellPolygon(c Cell) *geom.Polygon {
	x0 := g.OriginX + float64(c.Col)*g.CellSize
	y1 := g.OriginY - float64(c.Row)*g.CellSize
	return rectPolygon(x0, y1-g.CellSize, x0+g.CellSize, y1, g.SRID)
}

// Coarsen returns a grid whose cells are factor x factor blocks of g.
// Partial blocks at the right and bottom edges become whole coarse cells.
func (g Grid) Coarsen(factor int) Grid {
	if factor <= 1 {
		return g
	}
	return Grid{
		OriginX:  g.OriginX,
		OriginY:  g.OriginY,
		CellSize: g.CellSize * float64(factor),
		Width:    (g.Width + factor - 1) / factor,
		Height:   (g.Height + factor - 1) / factor,
		SRID:     g.SRID,
	}
}

// ScaleFactor converts a target scale in metres to an integer block factor.
// A scale of 0 or below the native cell size means native resolution.
func (g Grid) ScaleFactor(scaleM float64) (int, error) {
	if scaleM <= g.CellSize {
		return 1, nil
	}
	f := scaleM / g.CellSize
	r := math.Round(f)
	if math.Abs(f-r) > 1e-6 {
		return 0, eris.Errorf("raster: scale %v m is not a multiple of cell size %v m", scaleM, g.CellSize)
	}
	return int(r), nil
}

// Aligned reports whether two grids share origin, cell size and dimensions.
func (g Grid) Aligned(o Grid) bool {
	const eps = 1e-9
	return math.Abs(g.OriginX-o.OriginX) < eps &&
		math.Abs(g.OriginY-o.OriginY) < eps &&
		math.Abs(g.CellSize-o.CellSize) < eps &&
		g.Width == o.Width && g.Height == o.Height
}

func rectPolygon(minX, minY, maxX, maxY float64, srid int) *geom.Polygon {
	flat := []float64{
		minX, minY,
		maxX, minY,
		maxX, maxY,
		minX, maxY,
		minX, minY,
	}
	p := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	if srid != 0 {
		p.SetSRID(srid)
	}
	return p
}
