// Package pipeline wires the period composer, mask builder, frequency engine,
// classifiers and region extractor into one classification run.
package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
	"github.com/sells-group/flood-cli/internal/season"
	"github.com/sells-group/flood-cli/internal/water"
)

// DefaultTargets are the classes turned into regions.
var DefaultTargets = []model.Class{model.ClassSeasonal, model.ClassFlood}

// Phase records one step of a run.
type Phase struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Result is everything one (params, selection) run produces.
type Result struct {
	Selection      model.PeriodKey      `json:"selection"`
	Params         model.Params         `json:"params"`
	Baseline       water.Classification `json:"-"`
	Classification water.Classification `json:"-"`
	Regions        region.Set           `json:"-"`
	Phases         []Phase              `json:"phases"`
}

// Key returns the export key "{year}_biweek_{index}".
func (r *Result) Key() string { return r.Selection.ExportKey() }

// Pipeline classifies one selection at a time. Composites depend only on the
// source and the season, so they are computed once per year and reused;
// masks, frequencies and classifications are rebuilt on every call.
type Pipeline struct {
	composer *season.Composer
	years    []int
	opts     region.Options
	targets  []model.Class

	composites map[int][]season.Composite
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTargets overrides the region target classes.
func WithTargets(classes ...model.Class) Option {
	return func(p *Pipeline) { p.targets = classes }
}

// WithRegionOptions sets the labelling scale and connectivity. Dilation and
// minimum area come from model.Params on each run.
func WithRegionOptions(opts region.Options) Option {
	return func(p *Pipeline) { p.opts = opts }
}

// New creates a Pipeline over the historical years.
func New(composer *season.Composer, years []int, opts ...Option) *Pipeline {
	p := &Pipeline{
		composer:   composer,
		years:      slices.Clone(years),
		targets:    DefaultTargets,
		composites: make(map[int][]season.Composite),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Grid returns the region grid the pipeline classifies on.
func (p *Pipeline) Grid() raster.Grid { return p.composer.Region }

// Prepare composes every configured year plus extra. It is safe to call more
// than once; years already composed are skipped.
func (p *Pipeline) Prepare(ctx context.Context, extra ...int) error {
	var missing []int
	for _, y := range append(slices.Clone(p.years), extra...) {
		if _, ok := p.composites[y]; ok || slices.Contains(missing, y) {
			continue
		}
		missing = append(missing, y)
	}
	if len(missing) == 0 {
		return nil
	}
	comps, err := p.composer.ComposeYears(ctx, missing)
	if err != nil {
		return eris.Wrap(err, "pipeline: compose")
	}
	for _, y := range missing {
		p.composites[y] = nil
	}
	for _, c := range comps {
		p.composites[c.Period.Year] = append(p.composites[c.Period.Year], c)
	}
	return nil
}

// Run classifies sel with params and extracts its regions. The selected year
// is composed on demand when it is not one of the historical years.
func (p *Pipeline) Run(ctx context.Context, params model.Params, sel model.PeriodKey) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := p.Prepare(ctx, sel.Year); err != nil {
		return nil, err
	}

	var history []season.Composite
	for _, y := range p.years {
		history = append(history, p.composites[y]...)
	}
	return Classify(p.Grid(), history, p.composites[sel.Year], params, sel, p.opts, p.targets)
}

// Classify runs the pure part of the pipeline on already composed periods.
func Classify(
	grid raster.Grid,
	history, year []season.Composite,
	params model.Params,
	sel model.PeriodKey,
	opts region.Options,
	targets []model.Class,
) (*Result, error) {
	log := zap.L().With(zap.String("selection", sel.String()))
	res := &Result{Selection: sel, Params: params}

	track := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		res.Phases = append(res.Phases, Phase{Name: name, Duration: time.Since(start)})
		if err != nil {
			log.Debug("pipeline: phase failed", zap.String("phase", name), zap.Error(err))
			return err
		}
		return nil
	}

	var historyMasks, yearMasks water.MaskSet
	var freq water.FrequencyField
	if err := track("masks", func() error {
		historyMasks = water.BuildMasks(history, grid, params.Threshold)
		yearMasks = water.BuildMasks(year, grid, params.Threshold)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := track("frequency", func() error {
		var err error
		freq, err = water.Accumulate(grid, historyMasks)
		return eris.Wrap(err, "pipeline: frequency")
	}); err != nil {
		return nil, err
	}

	if err := track("baseline", func() error {
		res.Baseline = water.Baseline(freq, params.PerennialThreshold)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := track("period", func() error {
		var err error
		res.Classification, err = water.Refine(res.Baseline, historyMasks, yearMasks, sel, params)
		return err
	}); err != nil {
		return nil, err
	}

	if err := track("regions", func() error {
		o := opts
		o.DilationM = params.DilationM
		o.MinAreaSqm = params.MinAreaSqm
		var err error
		res.Regions, err = region.Extract(res.Classification, targets, o)
		return eris.Wrap(err, "pipeline: regions")
	}); err != nil {
		return nil, err
	}

	log.Debug("pipeline: run complete",
		zap.Int("regions", res.Regions.Len()),
		zap.Float64("area_m2", res.Regions.TotalArea()),
	)
	return res, nil
}
