// Package enrich samples cells from labelled polygons and stacks the nearest
// radar and optical observations onto each sample.
package enrich

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
)

var nameRe = regexp.MustCompile(`^([0-9]+)(NW|W)([0-9]{2})([0-9]{2})([0-9]{4})$`)

// Label is the parsed form of a polygon name such as "19W19102022".
type Label struct {
	ID        string
	WaterType string
	Date      time.Time
}

// ParseName splits "{id}{W|NW}{DDMMYYYY}".
func ParseName(name string) (Label, error) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return Label{}, eris.Errorf("enrich: polygon name %q does not match {id}{W|NW}{DDMMYYYY}", name)
	}
	day, _ := strconv.Atoi(m[3])
	month, _ := strconv.Atoi(m[4])
	year, _ := strconv.Atoi(m[5])
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return Label{}, eris.Errorf("enrich: polygon name %q has invalid date", name)
	}
	return Label{ID: m[1], WaterType: m[2], Date: d}, nil
}

// Polygon is a labelled polygon rasterised onto the sampling grid.
type Polygon struct {
	Name   string
	Mask   raster.Mask
	AreaM2 float64
}

// Sample is one cell to enrich.
type Sample struct {
	Label
	Name       string
	Cell       raster.Cell
	X, Y       float64
	PolyAreaM2 float64
}

// Sampler draws up to PerPolygon random cells from each polygon. Water
// polygons additionally yield non-water samples from a ring between
// RingInnerM and RingOuterM around the polygon.
type Sampler struct {
	PerPolygon int
	RingInnerM float64
	RingOuterM float64
	Rand       *rand.Rand
}

// NewSampler returns a sampler with 10 samples per polygon, a 30-80 m ring,
// and a generator seeded with seed.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{
		PerPolygon: 10,
		RingInnerM: 30,
		RingOuterM: 80,
		Rand:       rand.New(rand.NewPCG(seed, seed)),
	}
}

// Samples returns the samples of every polygon, in polygon order.
func (s *Sampler) Samples(polys []Polygon) ([]Sample, error) {
	var out []Sample
	for _, p := range polys {
		lbl, err := ParseName(p.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, s.draw(p, lbl, p.Mask)...)

		if lbl.WaterType != model.WaterTypeWater {
			continue
		}
		nw := lbl
		nw.WaterType = model.WaterTypeNonWater
		out = append(out, s.draw(p, nw, s.ring(p.Mask))...)
	}
	return out, nil
}

// ring returns the cells within RingOuterM but beyond RingInnerM of m. An
// empty ring falls back to the outer buffer.
func (s *Sampler) ring(m raster.Mask) raster.Mask {
	inner := region.Dilate(m, s.RingInnerM)
	outer := region.Dilate(m, s.RingOuterM)
	ring := raster.NewMask(m.Grid)
	for i, b := range outer.Bits {
		ring.Bits[i] = b && !inner.Bits[i]
	}
	if ring.Empty() {
		return outer
	}
	return ring
}

func (s *Sampler) draw(p Polygon, lbl Label, m raster.Mask) []Sample {
	var idx []int
	for i, b := range m.Bits {
		if b {
			idx = append(idx, i)
		}
	}
	s.Rand.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	if s.PerPolygon > 0 && len(idx) > s.PerPolygon {
		idx = idx[:s.PerPolygon]
	}

	out := make([]Sample, 0, len(idx))
	for _, i := range idx {
		c := m.Grid.Cell(i)
		x, y := m.Grid.Center(c)
		out = append(out, Sample{Label: lbl, Name: p.Name, Cell: c, X: x, Y: y, PolyAreaM2: p.AreaM2})
	}
	return out
}
