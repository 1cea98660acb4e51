// Package matcher finds the observation closest in time to a target date
// within a per-sensor search window.
package matcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/source"
)

const day = 24 * time.Hour

// Sensor describes a sensor's search radius and the bands a match must carry.
type Sensor struct {
	Name   string
	Radius time.Duration
	Bands  []string
}

// Radar is the slow-revisit SAR sensor (+-7 days).
func Radar(bands ...string) Sensor {
	if len(bands) == 0 {
		bands = []string{"VV", "VH"}
	}
	return Sensor{Name: "S1", Radius: 7 * day, Bands: bands}
}

// Optical is the fast-revisit optical sensor (+-3 days).
func Optical(bands ...string) Sensor {
	if len(bands) == 0 {
		bands = []string{"B2", "B3", "B4", "B8", "B5", "B6", "B7", "B8A"}
	}
	return Sensor{Name: "S2", Radius: 3 * day, Bands: bands}
}

// Match is the outcome of a search. A missing match carries a sentinel
// observation with the sensor's bands and every cell masked.
type Match struct {
	Sensor      string
	Observation source.Observation
	Offset      model.Maybe[time.Duration] // observation time minus target
	Missing     bool
}

// DayDiff returns |offset| in fractional days, absent when missing.
func (m Match) DayDiff() model.Maybe[float64] {
	off, ok := m.Offset.Get()
	if !ok {
		return model.None[float64]()
	}
	return model.Some(abs(off).Hours() / 24)
}

// Matcher queries a source around a target time.
type Matcher struct {
	Source source.Source
}

// Closest returns the observation nearest to target within sensor.Radius on
// either side, or a missing match when the window is empty.
func (m *Matcher) Closest(ctx context.Context, target time.Time, region raster.Grid, sensor Sensor) (Match, error) {
	window := model.Window{
		Start: target.Add(-sensor.Radius),
		End:   target.Add(sensor.Radius + time.Nanosecond),
	}
	obs, err := m.Source.Query(ctx, region, window, source.Filter{Sensor: sensor.Name, Bands: sensor.Bands})
	if err != nil {
		return Match{}, eris.Wrapf(err, "matcher: query %s around %s", sensor.Name, target.Format(time.DateOnly))
	}

	best, ok := Nearest(obs, target, sensor.Radius)
	if !ok {
		zap.L().Debug("matcher: no observation in window",
			zap.String("sensor", sensor.Name),
			zap.Time("target", target),
			zap.Error(&model.DataGapError{Sensor: sensor.Name, Window: window}),
		)
		return MissingMatch(sensor, region), nil
	}
	return Match{
		Sensor:      sensor.Name,
		Observation: best,
		Offset:      model.Some(best.Time.Sub(target)),
	}, nil
}

// Nearest picks the observation minimising |time - target| among those within
// radius. Equidistant candidates resolve to the earliest timestamp, then the
// lowest id, so the result does not depend on source ordering.
func Nearest(obs []source.Observation, target time.Time, radius time.Duration) (source.Observation, bool) {
	var (
		best  source.Observation
		bestD time.Duration
		found bool
	)
	for _, o := range obs {
		d := abs(o.Time.Sub(target))
		if d > radius {
			continue
		}
		if !found || d < bestD || (d == bestD && earlier(o, best)) {
			best, bestD, found = o, d, true
		}
	}
	return best, found
}

func earlier(a, b source.Observation) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.ID < b.ID
}

// MissingMatch builds the sentinel for an empty window.
func MissingMatch(sensor Sensor, region raster.Grid) Match {
	bands := make(map[string]raster.Field, len(sensor.Bands))
	for _, b := range sensor.Bands {
		bands[b] = raster.NewField(region)
	}
	return Match{
		Sensor:      sensor.Name,
		Observation: source.Observation{Sensor: sensor.Name, Bands: bands},
		Offset:      model.None[time.Duration](),
		Missing:     true,
	}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
