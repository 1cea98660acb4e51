package season

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/source"
)

// Composite is one period's representative value. Mean is absent when the
// source returned no observations for the period (a data gap).
type Composite struct {
	Period model.Period
	Mean   model.Maybe[raster.Field]
}

// Gap reports whether the period had no observations.
func (c Composite) Gap() bool { return !c.Mean.Present() }

// Composer requests observations per period window and averages them.
type Composer struct {
	Source      source.Source
	Region      raster.Grid
	Season      Season
	Filter      source.Filter
	Band        string
	Concurrency int
}

// ComposeYears composes every period of every year. The result is ordered by
// (year, index). Windows are independent and fetched concurrently.
func (c *Composer) ComposeYears(ctx context.Context, years []int) ([]Composite, error) {
	if err := c.Season.Validate(); err != nil {
		return nil, err
	}
	if err := c.Region.Validate(); err != nil {
		return nil, err
	}

	var periods []model.Period
	for _, y := range years {
		periods = append(periods, c.Season.Periods(y)...)
	}

	out := make([]Composite, len(periods))
	g, gctx := errgroup.WithContext(ctx)
	limit := c.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, p := range periods {
		g.Go(func() error {
			comp, err := c.Compose(gctx, p)
			if err != nil {
				return err
			}
			out[i] = comp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Period.Year != out[j].Period.Year {
			return out[i].Period.Year < out[j].Period.Year
		}
		return out[i].Period.Index < out[j].Period.Index
	})
	return out, nil
}

// Compose fetches one period and averages it. An empty result yields a gap
// composite, never a zero-valued field.
func (c *Composer) Compose(ctx context.Context, p model.Period) (Composite, error) {
	obs, err := c.Source.Query(ctx, c.Region, p.Window, c.Filter)
	if err != nil {
		return Composite{}, eris.Wrapf(err, "season: query %s", p.PeriodKey)
	}
	if len(obs) == 0 {
		zap.L().Debug("season: data gap",
			zap.String("period", p.PeriodKey.String()),
			zap.Error(&model.DataGapError{Sensor: c.Filter.Sensor, Window: p.Window}),
		)
		return Composite{Period: p, Mean: model.None[raster.Field]()}, nil
	}

	mean, err := Mean(obs, c.Band, c.Region)
	if err != nil {
		return Composite{}, eris.Wrapf(err, "season: compose %s", p.PeriodKey)
	}
	return Composite{Period: p, Mean: model.Some(mean)}, nil
}

// Mean averages band across obs per cell. Cells without any valid value stay
// invalid in the result.
func Mean(obs []source.Observation, band string, region raster.Grid) (raster.Field, error) {
	fields := make([]raster.Field, 0, len(obs))
	for _, o := range obs {
		f, ok := o.Band(band)
		if !ok {
			return raster.Field{}, eris.Errorf("season: observation %s lacks band %q", o.ID, band)
		}
		if !f.Grid.Aligned(region) {
			return raster.Field{}, eris.Errorf("season: observation %s is not on the region grid", o.ID)
		}
		fields = append(fields, f)
	}

	out := raster.NewField(region)
	vals := make([]float64, 0, len(fields))
	for i := 0; i < region.Len(); i++ {
		vals = vals[:0]
		for _, f := range fields {
			if v, ok := f.At(i); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) > 0 {
			out.Set(i, stat.Mean(vals, nil))
		}
	}
	return out, nil
}
