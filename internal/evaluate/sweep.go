package evaluate

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/integrate"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/pipeline"
)

// Space is the parameter grid of a sweep. An empty list keeps the base value.
type Space struct {
	Thresholds          []float64 `json:"thresholds" yaml:"thresholds"`
	PerennialThresholds []float64 `json:"perennial_thresholds" yaml:"perennial_thresholds"`
	WeekFreqs           []float64 `json:"week_freqs" yaml:"week_freqs"`
	YearFreqs           []float64 `json:"year_freqs" yaml:"year_freqs"`
}

// Combinations expands the cross product over base. Threshold varies slowest
// and year frequency fastest.
func (s Space) Combinations(base model.Params) []model.Params {
	or := func(vals []float64, def float64) []float64 {
		if len(vals) == 0 {
			return []float64{def}
		}
		return vals
	}
	var out []model.Params
	for _, th := range or(s.Thresholds, base.Threshold) {
		for _, tp := range or(s.PerennialThresholds, base.PerennialThreshold) {
			for _, w := range or(s.WeekFreqs, base.WeekFreq) {
				for _, y := range or(s.YearFreqs, base.YearFreq) {
					p := base
					p.Threshold, p.PerennialThreshold, p.WeekFreq, p.YearFreq = th, tp, w, y
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// Classifier runs the classification pipeline for one combination.
type Classifier interface {
	Run(ctx context.Context, params model.Params, sel model.PeriodKey) (*pipeline.Result, error)
}

// Skip records a combination that produced no result.
type Skip struct {
	Index  int          `json:"index" yaml:"index"`
	Params model.Params `json:"params" yaml:"params"`
	Reason string       `json:"reason" yaml:"reason"`
}

// Report is the outcome of a sweep. Results are ordered by ascending FPR.
type Report struct {
	Selection model.PeriodKey           `json:"selection" yaml:"selection"`
	Method    string                    `json:"method" yaml:"method"`
	Results   []model.CombinationResult `json:"results" yaml:"results"`
	Skipped   []Skip                    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	AUC       float64                   `json:"auc" yaml:"auc"`
	Best      *model.CombinationResult  `json:"best,omitempty" yaml:"best,omitempty"`
}

// Curve returns the ROC points in result order.
func (r *Report) Curve() []model.ROCPoint {
	out := make([]model.ROCPoint, len(r.Results))
	for i, c := range r.Results {
		out[i] = c.Point()
	}
	return out
}

// Sweep evaluates combinations one at a time. Each combination gets its own
// frequency fields and classification; nothing derived from the parameters
// is shared between combinations.
type Sweep struct {
	Classifier Classifier
	Scorer     Scorer
	Selection  model.PeriodKey
	Method     string

	// OnResult, when set, is called after each scored combination.
	OnResult func(ctx context.Context, r model.CombinationResult) error
}

// Run evaluates every combination in order. A failing combination is logged
// and skipped; the sweep continues with the next one.
func (s *Sweep) Run(ctx context.Context, combos []model.Params) (*Report, error) {
	log := zap.L().With(zap.String("selection", s.Selection.String()), zap.String("method", s.Method))
	rep := &Report{Selection: s.Selection, Method: s.Method}

	for i, p := range combos {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "evaluate: sweep interrupted")
		}
		clog := log.With(zap.Int("combination", i), zap.String("key", p.SweepKey("roc")))

		res, err := s.Classifier.Run(ctx, p, s.Selection)
		if err != nil {
			clog.Warn("evaluate: combination skipped", zap.Error(err))
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Params: p, Reason: err.Error()})
			continue
		}
		score, err := s.Scorer.Score(res.Regions)
		if err != nil {
			clog.Warn("evaluate: scoring failed", zap.Error(err))
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Params: p, Reason: err.Error()})
			continue
		}

		cr := model.CombinationResult{Index: i, Params: p, Counts: score.Counts, TPR: score.TPR, FPR: score.FPR}
		clog.Info("evaluate: combination scored",
			zap.Int64("tp", cr.Counts.TP),
			zap.Int64("fp", cr.Counts.FP),
			zap.Int64("fn", cr.Counts.FN),
			zap.Int64("tn", cr.Counts.TN),
			zap.Float64("tpr", cr.TPR),
			zap.Float64("fpr", cr.FPR),
		)
		if s.OnResult != nil {
			if err := s.OnResult(ctx, cr); err != nil {
				return nil, eris.Wrapf(err, "evaluate: record combination %d", i)
			}
		}
		rep.Results = append(rep.Results, cr)
	}

	Summarize(rep)
	log.Info("evaluate: sweep complete",
		zap.Int("scored", len(rep.Results)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Float64("auc", rep.AUC),
	)
	return rep, nil
}

// Summarize sorts the results by FPR, then TPR, and fills AUC and Best.
func Summarize(rep *Report) {
	sort.SliceStable(rep.Results, func(i, j int) bool {
		a, b := rep.Results[i], rep.Results[j]
		if a.FPR != b.FPR {
			return a.FPR < b.FPR
		}
		return a.TPR < b.TPR
	})
	rep.AUC = AUC(rep.Curve())
	rep.Best = nil
	if best, ok := Best(rep.Results); ok {
		rep.Best = &best
	}
}

// AUC integrates TPR over FPR with the trapezoidal rule. Points must be
// sorted by FPR. Fewer than two points give 0.
func AUC(points []model.ROCPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i], y[i] = p.FPR, p.TPR
	}
	return integrate.Trapezoidal(x, y)
}

// Best returns the result with the highest Youden index. Ties keep the
// earliest combination index.
func Best(results []model.CombinationResult) (model.CombinationResult, bool) {
	var (
		best  model.CombinationResult
		found bool
	)
	for _, r := range results {
		if !found || r.Youden() > best.Youden() || (r.Youden() == best.Youden() && r.Index < best.Index) {
			best, found = r, true
		}
	}
	return best, found
}
