package water

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Epsilon keeps the frequency denominator away from zero.
const Epsilon = 1e-10

// FrequencyField holds per-cell water and valid-observation counts.
// The ratio is undefined where Valid is 0.
type FrequencyField struct {
	Grid  raster.Grid
	Water []int
	Valid []int
}

// Accumulate counts water and valid observations per cell across masks.
// No-data cells contribute to neither count.
func Accumulate(g raster.Grid, masks MaskSet) (FrequencyField, error) {
	f := FrequencyField{Grid: g, Water: make([]int, g.Len()), Valid: make([]int, g.Len())}
	for _, m := range masks {
		if !m.Grid.Aligned(g) || len(m.Cells) != g.Len() {
			return FrequencyField{}, eris.Errorf("water: mask %s is not on the frequency grid", m.Key)
		}
		for i, p := range m.Cells {
			switch p {
			case model.Water:
				f.Water[i]++
				f.Valid[i]++
			case model.NonWater:
				f.Valid[i]++
			}
		}
	}
	return f, nil
}

// At returns water/(valid+Epsilon) and false where no valid observation exists.
func (f FrequencyField) At(i int) (float64, bool) {
	if f.Valid[i] == 0 {
		return 0, false
	}
	return float64(f.Water[i]) / (float64(f.Valid[i]) + Epsilon), true
}

// Field materialises the ratio as a raster field; undefined cells are invalid.
func (f FrequencyField) Field() raster.Field {
	out := raster.NewField(f.Grid)
	for i := range f.Valid {
		if v, ok := f.At(i); ok {
			out.Set(i, v)
		}
	}
	return out
}
