package main

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/config"
	"github.com/sells-group/flood-cli/internal/evaluate"
	"github.com/sells-group/flood-cli/internal/groundtruth"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/pipeline"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

// thresholdClassifier fails for thresholds below -20 and otherwise returns
// an empty region set.
type thresholdClassifier struct{}

func (thresholdClassifier) Run(_ context.Context, p model.Params, sel model.PeriodKey) (*pipeline.Result, error) {
	if p.Threshold < -20 {
		return nil, eris.New("no data")
	}
	return &pipeline.Result{Selection: sel, Params: p}, nil
}

// constScorer returns the same score for every prediction.
type constScorer struct {
	score evaluate.Score
}

func (s constScorer) Score(region.Set) (evaluate.Score, error) {
	return s.score, nil
}

func TestRunSweep_SavesEveryScoredCombination(t *testing.T) {
	withConfig(t, &config.Config{
		Classify: config.ClassifyConfig{Threshold: -16, PerennialThreshold: 0.8, WeekFreq: 0.3, YearFreq: 0.2},
		Sweep: config.SweepConfig{
			Thresholds: []float64{-22, -18, -16},
			Year:       2019,
			Period:     4,
			Method:     evaluate.MethodCells,
		},
	})
	st := newTestStore(t)
	ctx := context.Background()
	run, err := st.CreateRun(ctx, evaluate.MethodCells, cfg.SweepSelection())
	require.NoError(t, err)

	rep, err := runSweep(ctx, st, run.ID, thresholdClassifier{}, constScorer{score: evaluate.Score{Counts: model.ConfusionCounts{TP: 3, TN: 5}, TPR: 1}})
	require.NoError(t, err)

	assert.Len(t, rep.Results, 2)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, 0, rep.Skipped[0].Index)

	saved, err := st.ListCombinations(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, 1, saved[0].Index)
	assert.Equal(t, 2, saved[1].Index)
	assert.InDelta(t, -18.0, saved[0].Params.Threshold, 1e-9)
}

func TestScorerFor(t *testing.T) {
	g := raster.Grid{CellSize: 10, Width: 4, Height: 4}
	truth := &groundtruth.Truth{Mask: raster.NewMask(g), Regions: region.Set{Grid: g}}

	withConfig(t, &config.Config{Sweep: config.SweepConfig{Method: evaluate.MethodCells}})
	_, ok := scorerFor(truth).(evaluate.CellScorer)
	assert.True(t, ok)

	withConfig(t, &config.Config{Sweep: config.SweepConfig{Method: evaluate.MethodPolygons, PredOverlap: 0.5}})
	ps, ok := scorerFor(truth).(evaluate.PolygonScorer)
	require.True(t, ok)
	assert.InDelta(t, 0.5, ps.PredOverlap, 1e-9)
	assert.InDelta(t, evaluate.DefaultTruthOverlap, ps.TruthOverlap, 1e-9)
	assert.InDelta(t, evaluate.DefaultPseudoNegativeFactor, ps.PseudoNegativeFactor, 1e-9)
}
