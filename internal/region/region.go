// Package region turns a target-class mask into dilated, connected,
// area-filtered regions and back into rasters and polygons.
package region

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/water"
)

// Options controls extraction.
type Options struct {
	DilationM    float64 // max-filter radius in metres; 0 disables dilation
	MinAreaSqm   float64
	ScaleM       float64 // labelling scale; 0 means the native cell size
	Connectivity int     // 4 or 8; 0 means 8
}

// Region is a connected set of cells with its planar area.
type Region struct {
	ID    int           `json:"id"`
	Cells []raster.Cell `json:"-"`
	Area  float64       `json:"area_m2"`
}

// Set is a region collection on one grid. Sets are never mutated in place.
type Set struct {
	Grid    raster.Grid
	Regions []Region
}

// Extract builds the filtered region set for cells whose class is in targets.
func Extract(c water.Classification, targets []model.Class, opts Options) (Set, error) {
	return ExtractMask(c.Select(targets...), opts)
}

// ExtractMask dilates m, labels connected components at the requested scale,
// and drops components smaller than opts.MinAreaSqm. An empty mask yields an
// empty set.
func ExtractMask(m raster.Mask, opts Options) (Set, error) {
	factor, err := m.Grid.ScaleFactor(opts.ScaleM)
	if err != nil {
		return Set{}, eris.Wrap(err, "region: scale")
	}
	conn := opts.Connectivity
	if conn == 0 {
		conn = 8
	}
	if conn != 4 && conn != 8 {
		return Set{}, eris.Errorf("region: connectivity %d must be 4 or 8", conn)
	}

	if m.Empty() {
		return Set{Grid: m.Grid.Coarsen(factor)}, nil
	}

	dilated := Dilate(m, opts.DilationM)
	labelled := dilated
	if factor > 1 {
		labelled = dilated.Resample(dilated.Grid.Coarsen(factor))
	}

	all := Label(labelled, conn)
	out := all.Filter(opts.MinAreaSqm)

	zap.L().Debug("region: extracted",
		zap.Int("components", len(all.Regions)),
		zap.Int("retained", len(out.Regions)),
		zap.Float64("min_area_sqm", opts.MinAreaSqm),
	)
	return out, nil
}

// Dilate ORs every cell within radiusM of a true cell (circular max-filter).
func Dilate(m raster.Mask, radiusM float64) raster.Mask {
	out := raster.NewMask(m.Grid)
	copy(out.Bits, m.Bits)
	if radiusM <= 0 {
		return out
	}

	g := m.Grid
	r := int(math.Floor(radiusM / g.CellSize))
	if r == 0 {
		return out
	}
	var offsets []raster.Cell
	r2 := radiusM * radiusM
	for dr := -r; dr <= r; dr++ {
		for dc := -r; dc <= r; dc++ {
			d2 := float64(dr*dr+dc*dc) * g.CellArea()
			if d2 <= r2 {
				offsets = append(offsets, raster.Cell{Row: dr, Col: dc})
			}
		}
	}

	for i, set := range m.Bits {
		if !set {
			continue
		}
		c := g.Cell(i)
		for _, o := range offsets {
			n := raster.Cell{Row: c.Row + o.Row, Col: c.Col + o.Col}
			if g.Contains(n) {
				out.Bits[g.Index(n)] = true
			}
		}
	}
	return out
}

// Label groups true cells into maximal connected components using
// breadth-first search over 4- or 8-neighbourhoods. IDs follow scan order.
func Label(m raster.Mask, connectivity int) Set {
	g := m.Grid
	neighbours := []raster.Cell{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}
	if connectivity == 8 {
		neighbours = append(neighbours,
			raster.Cell{Row: -1, Col: -1}, raster.Cell{Row: -1, Col: 1},
			raster.Cell{Row: 1, Col: -1}, raster.Cell{Row: 1, Col: 1})
	}

	visited := make([]bool, g.Len())
	out := Set{Grid: g}
	for i, set := range m.Bits {
		if !set || visited[i] {
			continue
		}
		reg := Region{ID: len(out.Regions) + 1}
		queue := []int{i}
		visited[i] = true
		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			c := g.Cell(idx)
			reg.Cells = append(reg.Cells, c)
			for _, d := range neighbours {
				n := raster.Cell{Row: c.Row + d.Row, Col: c.Col + d.Col}
				if !g.Contains(n) {
					continue
				}
				ni := g.Index(n)
				if m.Bits[ni] && !visited[ni] {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}
		reg.Area = float64(len(reg.Cells)) * g.CellArea()
		out.Regions = append(out.Regions, reg)
	}
	return out
}

// Filter returns a new set keeping regions with area >= minArea.
func (s Set) Filter(minArea float64) Set {
	out := Set{Grid: s.Grid, Regions: make([]Region, 0, len(s.Regions))}
	for _, r := range s.Regions {
		if r.Area >= minArea {
			out.Regions = append(out.Regions, r)
		}
	}
	return out
}

// Len returns the number of regions.
func (s Set) Len() int { return len(s.Regions) }

// TotalArea sums region areas.
func (s Set) TotalArea() float64 {
	var a float64
	for _, r := range s.Regions {
		a += r.Area
	}
	return a
}

// Mask paints the regions on their own grid.
func (s Set) Mask() raster.Mask {
	m := raster.NewMask(s.Grid)
	for _, r := range s.Regions {
		for _, c := range r.Cells {
			m.Bits[s.Grid.Index(c)] = true
		}
	}
	return m
}

// Rasterize paints the regions onto target, sampling at target cell centres.
func (s Set) Rasterize(target raster.Grid) raster.Mask {
	return s.Mask().Resample(target)
}
