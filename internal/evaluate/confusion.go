// Package evaluate scores classification runs against ground truth and sweeps
// parameter combinations into an ROC curve.
package evaluate

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
)

// Scoring methods.
const (
	MethodCells    = "cells"
	MethodPolygons = "polygons"
)

// Score is the outcome of comparing one prediction with ground truth.
type Score struct {
	Counts model.ConfusionCounts
	TPR    float64
	FPR    float64
}

// Scorer compares predicted regions with ground truth.
type Scorer interface {
	Score(pred region.Set) (Score, error)
}

// Count tallies the confusion matrix of two masks on the same grid.
func Count(pred, truth raster.Mask) (model.ConfusionCounts, error) {
	if !pred.Grid.Aligned(truth.Grid) {
		return model.ConfusionCounts{}, eris.New("evaluate: prediction and truth grids differ")
	}
	var c model.ConfusionCounts
	for i, p := range pred.Bits {
		t := truth.Bits[i]
		switch {
		case p && t:
			c.TP++
		case p && !t:
			c.FP++
		case !p && t:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// CellScorer counts cells after rasterising the prediction onto the truth grid.
type CellScorer struct {
	Truth raster.Mask
}

// Score implements Scorer.
func (s CellScorer) Score(pred region.Set) (Score, error) {
	c, err := Count(pred.Rasterize(s.Truth.Grid), s.Truth)
	if err != nil {
		return Score{}, err
	}
	return Score{Counts: c, TPR: c.TPR(), FPR: c.FPR()}, nil
}
