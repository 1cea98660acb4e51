package evaluate

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
)

// Default polygon-overlap settings.
const (
	DefaultPredOverlap          = 0.4
	DefaultTruthOverlap         = 0.3
	DefaultPseudoNegativeFactor = 1.5
)

// PolygonScorer matches predicted regions to truth regions by overlap ratio.
//
// A predicted region whose overlap with truth covers at least PredOverlap of
// its own area is a true positive, otherwise a false positive. A truth region
// covered by predictions for less than TruthOverlap of its area is a false
// negative. With no true negatives at region level, FPR is computed against
// PseudoNegativeFactor times the number of truth regions.
type PolygonScorer struct {
	Truth                region.Set
	PredOverlap          float64
	TruthOverlap         float64
	PseudoNegativeFactor float64
}

// NewPolygonScorer returns a scorer with the default overlap settings.
func NewPolygonScorer(truth region.Set) PolygonScorer {
	return PolygonScorer{
		Truth:                truth,
		PredOverlap:          DefaultPredOverlap,
		TruthOverlap:         DefaultTruthOverlap,
		PseudoNegativeFactor: DefaultPseudoNegativeFactor,
	}
}

// Score implements Scorer. Overlap is measured in cells of the truth grid.
func (s PolygonScorer) Score(pred region.Set) (Score, error) {
	if s.PredOverlap <= 0 || s.PredOverlap > 1 || s.TruthOverlap <= 0 || s.TruthOverlap > 1 {
		return Score{}, eris.Errorf("evaluate: overlap ratios %v/%v outside (0,1]", s.PredOverlap, s.TruthOverlap)
	}
	g := s.Truth.Grid
	truthMask := s.Truth.Mask()
	predMask := pred.Rasterize(g)

	var c model.ConfusionCounts
	for _, r := range pred.Regions {
		if overlap(single(pred, r).Rasterize(g), truthMask) >= s.PredOverlap {
			c.TP++
		} else {
			c.FP++
		}
	}
	for _, r := range s.Truth.Regions {
		if overlap(single(s.Truth, r).Mask(), predMask) < s.TruthOverlap {
			c.FN++
		}
	}

	out := Score{Counts: c, TPR: c.TPR()}
	if denom := float64(c.FP) + s.PseudoNegativeFactor*float64(s.Truth.Len()); denom > 0 {
		out.FPR = float64(c.FP) / denom
	}
	return out, nil
}

func single(s region.Set, r region.Region) region.Set {
	return region.Set{Grid: s.Grid, Regions: []region.Region{r}}
}

// overlap returns |a ∩ b| / |a|, or 0 when a is empty.
func overlap(a, b raster.Mask) float64 {
	var n, both int
	for i, v := range a.Bits {
		if !v {
			continue
		}
		n++
		if b.Bits[i] {
			both++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(both) / float64(n)
}
