package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/source"
)

var region = raster.Grid{OriginX: 0, OriginY: 10, CellSize: 10, Width: 1, Height: 1}

var target = time.Date(2022, 10, 19, 0, 0, 0, 0, time.UTC)

func radarObs(id string, at time.Time) source.Observation {
	vv := raster.NewField(region)
	vv.Set(0, -18)
	vh := raster.NewField(region)
	vh.Set(0, -24)
	return source.Observation{ID: id, Sensor: "S1", Time: at, Bands: map[string]raster.Field{"VV": vv, "VH": vh}}
}

func TestClosestSingleObservationEitherSign(t *testing.T) {
	for _, offset := range []time.Duration{-5 * day, 6 * day, 0} {
		src := source.NewMemorySource(radarObs("only", target.Add(offset)))
		m := &Matcher{Source: src}

		match, err := m.Closest(context.Background(), target, region, Radar())
		require.NoError(t, err)
		require.False(t, match.Missing)
		assert.Equal(t, "only", match.Observation.ID)
		off, ok := match.Offset.Get()
		require.True(t, ok)
		assert.Equal(t, offset, off)
	}
}

func TestClosestPicksMinimumOffset(t *testing.T) {
	src := source.NewMemorySource(
		radarObs("far", target.Add(-6*day)),
		radarObs("near", target.Add(2*day)),
		radarObs("outside", target.Add(9*day)),
	)
	match, err := (&Matcher{Source: src}).Closest(context.Background(), target, region, Radar())
	require.NoError(t, err)
	assert.Equal(t, "near", match.Observation.ID)
	dd, ok := match.DayDiff().Get()
	require.True(t, ok)
	assert.InDelta(t, 2, dd, 1e-9)
}

func TestClosestWindowEdgesInclusive(t *testing.T) {
	src := source.NewMemorySource(radarObs("edge", target.Add(7*day)))
	match, err := (&Matcher{Source: src}).Closest(context.Background(), target, region, Radar())
	require.NoError(t, err)
	assert.False(t, match.Missing)
}

func TestNearestTieBreaksOnEarliest(t *testing.T) {
	obs := []source.Observation{
		radarObs("after", target.Add(day)),
		radarObs("before", target.Add(-day)),
	}
	best, ok := Nearest(obs, target, 7*day)
	require.True(t, ok)
	assert.Equal(t, "before", best.ID)

	same := []source.Observation{radarObs("b", target.Add(day)), radarObs("a", target.Add(day))}
	best, ok = Nearest(same, target, 7*day)
	require.True(t, ok)
	assert.Equal(t, "a", best.ID)
}

func TestClosestMissingSentinel(t *testing.T) {
	src := source.NewMemorySource(radarObs("stale", target.Add(-30*day)))
	match, err := (&Matcher{Source: src}).Closest(context.Background(), target, region, Optical())
	require.NoError(t, err)
	require.True(t, match.Missing)
	assert.False(t, match.Offset.Present())
	assert.False(t, match.DayDiff().Present())

	assert.Len(t, match.Observation.Bands, 8)
	for name, f := range match.Observation.Bands {
		assert.Equal(t, 0, f.ValidCount(), "band %s must be fully masked", name)
		assert.True(t, f.Grid.Aligned(region))
	}
}

func TestSensorDefaults(t *testing.T) {
	assert.Equal(t, 7*day, Radar().Radius)
	assert.Equal(t, []string{"VV", "VH"}, Radar().Bands)
	assert.Equal(t, 3*day, Optical().Radius)
	assert.Equal(t, []string{"B2"}, Optical("B2").Bands)
}
