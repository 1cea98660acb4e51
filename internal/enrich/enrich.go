package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/flood-cli/internal/matcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Enricher stacks the nearest radar and optical bands onto samples.
type Enricher struct {
	Matcher     *matcher.Matcher
	Grid        raster.Grid
	Radar       matcher.Sensor
	Optical     matcher.Sensor
	Concurrency int
}

// Enrich enriches every sample concurrently. Rows keep sample order.
func (e *Enricher) Enrich(ctx context.Context, samples []Sample) ([]model.SampleRow, error) {
	rows := make([]model.SampleRow, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	limit := e.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, s := range samples {
		g.Go(func() error {
			row, err := e.Row(gctx, s)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing int
	for _, r := range rows {
		if r.S1Missing || r.S2Missing || r.SampleMissing {
			missing++
		}
	}
	zap.L().Info("enrich: samples enriched", zap.Int("rows", len(rows)), zap.Int("incomplete", missing))
	return rows, nil
}

// Row enriches one sample. Bands are recorded only when both sensors matched
// and every band is valid at the sample cell; otherwise the corresponding
// missing flag is set.
func (e *Enricher) Row(ctx context.Context, s Sample) (model.SampleRow, error) {
	row := model.SampleRow{
		ID:         s.ID,
		Name:       s.Name,
		Longitude:  s.X,
		Latitude:   s.Y,
		Date:       s.Date,
		PolyAreaM2: s.PolyAreaM2,
		WaterType:  s.WaterType,
	}

	s1, err := e.Matcher.Closest(ctx, s.Date, e.Grid, e.Radar)
	if err != nil {
		return row, eris.Wrapf(err, "enrich: sample %s radar", s.Name)
	}
	s2, err := e.Matcher.Closest(ctx, s.Date, e.Grid, e.Optical)
	if err != nil {
		return row, eris.Wrapf(err, "enrich: sample %s optical", s.Name)
	}

	row.S1Missing, row.S2Missing = s1.Missing, s2.Missing
	if s1.Missing || s2.Missing {
		return row, nil
	}

	i := e.Grid.Index(s.Cell)
	bands := make(map[string]float64, len(e.Radar.Bands)+len(e.Optical.Bands))
	for _, m := range []struct {
		match  matcher.Match
		sensor matcher.Sensor
	}{{s1, e.Radar}, {s2, e.Optical}} {
		for _, b := range m.sensor.Bands {
			f, ok := m.match.Observation.Band(b)
			if !ok {
				row.SampleMissing = true
				return row, nil
			}
			v, ok := f.At(i)
			if !ok {
				row.SampleMissing = true
				return row, nil
			}
			bands[b] = v
		}
	}

	row.Bands = bands
	row.S1DayDiff, row.S2DayDiff = s1.DayDiff(), s2.DayDiff()
	row.S1Time = model.Some(s1.Observation.Time.UTC())
	row.S2Time = model.Some(s2.Observation.Time.UTC())
	return row, nil
}
