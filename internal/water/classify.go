package water

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Classification is a per-cell class grid. Cells with no valid history hold
// model.ClassMasked and are not classified.
type Classification struct {
	Grid    raster.Grid
	Classes []model.Class
}

// At returns the class at i and false for masked cells.
func (c Classification) At(i int) (model.Class, bool) {
	if c.Classes[i] == model.ClassMasked {
		return 0, false
	}
	return c.Classes[i], true
}

// Counts tallies classes, masked cells included.
func (c Classification) Counts() map[model.Class]int {
	out := make(map[model.Class]int)
	for _, cl := range c.Classes {
		out[cl]++
	}
	return out
}

// Select returns a mask of the cells whose class is in targets.
func (c Classification) Select(targets ...model.Class) raster.Mask {
	want := make(map[model.Class]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	m := raster.NewMask(c.Grid)
	for i, cl := range c.Classes {
		if cl != model.ClassMasked && want[cl] {
			m.Bits[i] = true
		}
	}
	return m
}

// Baseline labels each cell from its historical frequency:
// >= perennial threshold is Perennial, exactly 0 is NonWater, anything else
// Unclassified. Cells with undefined frequency stay masked.
func Baseline(freq FrequencyField, perennialThreshold float64) Classification {
	out := Classification{Grid: freq.Grid, Classes: make([]model.Class, freq.Grid.Len())}
	for i := range out.Classes {
		v, ok := freq.At(i)
		switch {
		case !ok:
			out.Classes[i] = model.ClassMasked
		case v >= perennialThreshold:
			out.Classes[i] = model.ClassPerennial
		case v == 0:
			out.Classes[i] = model.ClassNonWater
		default:
			out.Classes[i] = model.ClassUnclassified
		}
	}
	return out
}

// RefineWater classifies a baseline-unclassified cell observed as water in the
// selected period. Rules are tried in order and the first match wins:
// Seasonal, then Flood, then new Perennial.
func RefineWater(periodFreq, yearFreq float64, p model.Params) model.Class {
	w, g := p.WeekFreq, p.YearFreq
	switch {
	case (periodFreq >= w && yearFreq < g) || (periodFreq <= w && yearFreq > g):
		return model.ClassSeasonal
	case periodFreq < w:
		return model.ClassFlood
	case yearFreq >= g && periodFreq >= w:
		return model.ClassPerennial
	default:
		return model.ClassUnclassified
	}
}

// Refine runs the period pass for sel. history holds the masks of all
// configured years; year holds the masks of the selected year. Only
// baseline-unclassified cells change:
//   - no-data in the selected period: stays unclassified
//   - water: RefineWater on the same-index cross-year and this-year frequencies
//   - non-water: NonWater
//
// A selection with no mask fails with a SelectionNotFoundError. A gap period
// still has a mask; all its cells are no-data, so the baseline comes back
// unchanged.
func Refine(base Classification, history, year MaskSet, sel model.PeriodKey, p model.Params) (Classification, error) {
	current, ok := year.Find(sel)
	if !ok {
		current, ok = history.Find(sel)
	}
	if !ok {
		return Classification{}, &model.SelectionNotFoundError{Key: sel}
	}
	if current.AllNoData() {
		zap.L().Debug("water: selected period is a data gap", zap.String("selection", sel.String()))
	}

	yearFreq, err := Accumulate(base.Grid, year)
	if err != nil {
		return Classification{}, eris.Wrap(err, "water: this-year frequency")
	}
	periodFreq, err := Accumulate(base.Grid, history.AtIndex(sel.Index))
	if err != nil {
		return Classification{}, eris.Wrap(err, "water: this-period frequency")
	}
	if !current.Grid.Aligned(base.Grid) {
		return Classification{}, eris.Errorf("water: selected mask %s is not on the baseline grid", sel)
	}

	out := Classification{Grid: base.Grid, Classes: make([]model.Class, len(base.Classes))}
	copy(out.Classes, base.Classes)

	var undefined int
	for i, cl := range base.Classes {
		if cl != model.ClassUnclassified {
			continue
		}
		switch current.Cells[i] {
		case model.NonWater:
			out.Classes[i] = model.ClassNonWater
		case model.Water:
			pf, pok := periodFreq.At(i)
			yf, yok := yearFreq.At(i)
			if !pok || !yok {
				undefined++
				continue
			}
			out.Classes[i] = RefineWater(pf, yf, p)
		}
	}
	if undefined > 0 {
		zap.L().Debug("water: cells left unclassified for undefined frequency",
			zap.String("selection", sel.String()), zap.Int("cells", undefined))
	}
	return out, nil
}
