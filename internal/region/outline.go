package region

import (
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/flood-cli/internal/raster"
)

// Polygon returns the dissolved outline of r: one polygon per edge-connected
// piece, with outer rings counter-clockwise and holes clockwise. Pieces that
// touch only at a cell corner become separate polygons meeting at that point.
func (s Set) Polygon(r Region) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	if s.Grid.SRID != 0 {
		mp.SetSRID(s.Grid.SRID)
	}
	g := s.Grid
	for i, rings := range outline(r.Cells) {
		var flat []float64
		ends := make([]int, 0, len(rings))
		for _, ring := range rings {
			for _, v := range ring {
				flat = append(flat, g.OriginX+float64(v.x)*g.CellSize, g.OriginY+float64(v.y)*g.CellSize)
			}
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			return nil, eris.Wrapf(err, "region: polygon %d of region %d", i, r.ID)
		}
	}
	return mp, nil
}

// vertex is a cell corner in lattice units: x is the column and y the
// negated row, so y grows northwards like map coordinates.
type vertex struct{ x, y int }

type edge struct {
	from, to vertex
	cell     raster.Cell
}

func (e edge) dir() vertex { return vertex{e.to.x - e.from.x, e.to.y - e.from.y} }

// outline traces the boundary of cells. Every exposed cell side becomes an
// edge with the cell on its left; edges are chained taking the leftmost turn
// at each corner. Each result is a polygon as closed rings, outer ring first.
func outline(cells []raster.Cell) [][][]vertex {
	in := make(map[raster.Cell]bool, len(cells))
	for _, c := range cells {
		in[c] = true
	}
	sorted := slices.Clone(cells)
	slices.SortFunc(sorted, func(a, b raster.Cell) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})

	var edges []edge
	outgoing := make(map[vertex][]int)
	for _, c := range sorted {
		tl := vertex{c.Col, -c.Row}
		tr := vertex{c.Col + 1, -c.Row}
		br := vertex{c.Col + 1, -c.Row - 1}
		bl := vertex{c.Col, -c.Row - 1}
		add := func(nb raster.Cell, from, to vertex) {
			if in[nb] {
				return
			}
			outgoing[from] = append(outgoing[from], len(edges))
			edges = append(edges, edge{from: from, to: to, cell: c})
		}
		add(raster.Cell{Row: c.Row - 1, Col: c.Col}, tr, tl)
		add(raster.Cell{Row: c.Row, Col: c.Col - 1}, tl, bl)
		add(raster.Cell{Row: c.Row + 1, Col: c.Col}, bl, br)
		add(raster.Cell{Row: c.Row, Col: c.Col + 1}, br, tr)
	}

	var outers [][]vertex
	type hole struct {
		ring []vertex
		cell raster.Cell
	}
	var holes []hole
	used := make([]bool, len(edges))
	for start := range edges {
		if used[start] {
			continue
		}
		ring := []vertex{edges[start].from}
		for cur := start; ; {
			used[cur] = true
			ring = append(ring, edges[cur].to)
			cur = successor(edges, outgoing[edges[cur].to], edges[cur].dir())
			if cur < 0 || cur == start {
				break
			}
		}
		ring = simplify(ring)
		if xy.IsRingCounterClockwise(geom.XY, latticeFlat(ring)) {
			outers = append(outers, ring)
		} else {
			holes = append(holes, hole{ring: ring, cell: edges[start].cell})
		}
	}

	polys := make([][][]vertex, len(outers))
	for i, o := range outers {
		polys[i] = [][]vertex{o}
	}
	for _, h := range holes {
		owner := ownerOf(outers, h.cell)
		polys[owner] = append(polys[owner], h.ring)
	}
	return polys
}

// successor picks the outgoing edge turning most to the left of d.
func successor(edges []edge, outs []int, d vertex) int {
	best, rank := -1, 4
	for _, i := range outs {
		var r int
		switch edges[i].dir() {
		case vertex{-d.y, d.x}:
			r = 0
		case d:
			r = 1
		case vertex{d.y, -d.x}:
			r = 2
		default:
			r = 3
		}
		if r < rank {
			best, rank = i, r
		}
	}
	return best
}

// simplify drops the vertices between collinear edges of a closed ring.
func simplify(ring []vertex) []vertex {
	pts := ring[:len(ring)-1]
	n := len(pts)
	out := make([]vertex, 0, n+1)
	for i, v := range pts {
		p, q := pts[(i+n-1)%n], pts[(i+1)%n]
		if (v.x-p.x)*(q.y-v.y) == (v.y-p.y)*(q.x-v.x) {
			continue
		}
		out = append(out, v)
	}
	return append(out, out[0])
}

// ownerOf returns the index of the smallest outer ring containing the centre
// of c, or 0 when none does.
func ownerOf(outers [][]vertex, c raster.Cell) int {
	centre := geom.Coord{float64(c.Col) + 0.5, -float64(c.Row) - 0.5}
	owner, area := 0, -1.0
	for i, o := range outers {
		flat := latticeFlat(o)
		if !xy.IsPointInRing(geom.XY, centre, flat) {
			continue
		}
		if a := geom.NewLinearRingFlat(geom.XY, flat).Area(); area < 0 || a < area {
			owner, area = i, a
		}
	}
	return owner
}

func latticeFlat(ring []vertex) []float64 {
	out := make([]float64, 0, 2*len(ring))
	for _, v := range ring {
		out = append(out, float64(v.x), float64(v.y))
	}
	return out
}
