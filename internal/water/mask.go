// Package water turns composed periods into water masks, aggregates them into
// historical frequencies, and classifies cells into water-state classes.
package water

import (
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/season"
)

// PeriodMask is the tri-state water mask of one (year, period).
type PeriodMask struct {
	Key   model.PeriodKey
	Grid  raster.Grid
	Cells []model.Presence
}

// BuildMask thresholds a composite: value < threshold is water, otherwise
// non-water. A gap period, or a cell with no value, is no-data.
func BuildMask(c season.Composite, region raster.Grid, threshold float64) PeriodMask {
	m := PeriodMask{Key: c.Period.PeriodKey, Grid: region, Cells: make([]model.Presence, region.Len())}
	mean, ok := c.Mean.Get()
	for i := range m.Cells {
		m.Cells[i] = model.NoData
		if !ok {
			continue
		}
		v, valid := mean.At(i)
		if !valid {
			continue
		}
		if v < threshold {
			m.Cells[i] = model.Water
		} else {
			m.Cells[i] = model.NonWater
		}
	}
	return m
}

// BuildMasks thresholds every composite.
func BuildMasks(comps []season.Composite, region raster.Grid, threshold float64) MaskSet {
	out := make(MaskSet, 0, len(comps))
	for _, c := range comps {
		out = append(out, BuildMask(c, region, threshold))
	}
	return out
}

// AllNoData reports whether the mask carries no observation at all.
func (m PeriodMask) AllNoData() bool {
	for _, p := range m.Cells {
		if p.Valid() {
			return false
		}
	}
	return true
}

// MaskSet is an ordered collection of period masks.
type MaskSet []PeriodMask

// Year returns the masks of one year.
func (s MaskSet) Year(year int) MaskSet {
	var out MaskSet
	for _, m := range s {
		if m.Key.Year == year {
			out = append(out, m)
		}
	}
	return out
}

// AtIndex returns the masks sharing a period index across years.
func (s MaskSet) AtIndex(index int) MaskSet {
	var out MaskSet
	for _, m := range s {
		if m.Key.Index == index {
			out = append(out, m)
		}
	}
	return out
}

// Find returns the mask for key.
func (s MaskSet) Find(key model.PeriodKey) (PeriodMask, bool) {
	for _, m := range s {
		if m.Key == key {
			return m, true
		}
	}
	return PeriodMask{}, false
}

// Years returns the distinct years in order of first appearance.
func (s MaskSet) Years() []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range s {
		if !seen[m.Key.Year] {
			seen[m.Key.Year] = true
			out = append(out, m.Key.Year)
		}
	}
	return out
}
