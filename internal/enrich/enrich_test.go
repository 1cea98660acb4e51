package enrich

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/matcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
	"github.com/sells-group/flood-cli/internal/source"
)

var grid = raster.Grid{OriginX: 0, OriginY: 100, CellSize: 10, Width: 10, Height: 10}

var target = time.Date(2022, 10, 19, 0, 0, 0, 0, time.UTC)

func TestParseName(t *testing.T) {
	tests := []struct {
		name    string
		want    Label
		wantErr bool
	}{
		{name: "19W19102022", want: Label{ID: "19", WaterType: "W", Date: target}},
		{name: "101NW05042025", want: Label{ID: "101", WaterType: "NW", Date: time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC)}},
		{name: "19X19102022", wantErr: true},
		{name: "19W31022022", wantErr: true},
		{name: "W19102022", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func block(row0, col0, size int) raster.Mask {
	m := raster.NewMask(grid)
	for r := row0; r < row0+size; r++ {
		for c := col0; c < col0+size; c++ {
			m.Bits[grid.Index(raster.Cell{Row: r, Col: c})] = true
		}
	}
	return m
}

func TestSamplerWaterPolygonAddsRingSamples(t *testing.T) {
	s := NewSampler(42)
	s.PerPolygon = 5
	poly := Polygon{Name: "19W19102022", Mask: block(4, 4, 3), AreaM2: 900}

	samples, err := s.Samples([]Polygon{poly})
	require.NoError(t, err)
	require.Len(t, samples, 10)

	inner := region.Dilate(poly.Mask, s.RingInnerM)
	seen := map[raster.Cell]bool{}
	for i, smp := range samples {
		assert.Equal(t, "19", smp.ID)
		assert.Equal(t, 900.0, smp.PolyAreaM2)
		idx := grid.Index(smp.Cell)
		if i < 5 {
			assert.Equal(t, model.WaterTypeWater, smp.WaterType)
			assert.True(t, poly.Mask.Bits[idx])
			assert.False(t, seen[smp.Cell], "cells are drawn without replacement")
			seen[smp.Cell] = true
		} else {
			assert.Equal(t, model.WaterTypeNonWater, smp.WaterType)
			assert.False(t, inner.Bits[idx])
		}
	}
}

func TestSamplerNonWaterPolygonHasNoRing(t *testing.T) {
	s := NewSampler(1)
	samples, err := s.Samples([]Polygon{{Name: "3NW01062021", Mask: block(0, 0, 2)}})
	require.NoError(t, err)
	assert.Len(t, samples, 4)
	for _, smp := range samples {
		assert.Equal(t, model.WaterTypeNonWater, smp.WaterType)
	}
}

func TestSamplerRejectsBadName(t *testing.T) {
	_, err := NewSampler(1).Samples([]Polygon{{Name: "lake", Mask: block(0, 0, 1)}})
	assert.Error(t, err)
}

func filled(v float64) raster.Field {
	f := raster.NewField(grid)
	for i := range f.Values {
		f.Set(i, v)
	}
	return f
}

func radar(at time.Time) source.Observation {
	return source.Observation{ID: "s1-" + at.Format("0102"), Sensor: "S1", Time: at, Bands: map[string]raster.Field{
		"VV": filled(-12), "VH": filled(-19),
	}}
}

func optical(at time.Time, maskB5 bool) source.Observation {
	bands := map[string]raster.Field{}
	for i, b := range model.OpticalBands {
		bands[b] = filled(float64(100 * (i + 1)))
	}
	if maskB5 {
		bands["B5"] = raster.NewField(grid)
	}
	return source.Observation{ID: "s2-" + at.Format("0102"), Sensor: "S2", Time: at, Bands: bands}
}

func enricher(obs ...source.Observation) *Enricher {
	return &Enricher{
		Matcher:     &matcher.Matcher{Source: source.NewMemorySource(obs...)},
		Grid:        grid,
		Radar:       matcher.Radar(),
		Optical:     matcher.Optical(),
		Concurrency: 2,
	}
}

func sample() Sample {
	return Sample{Label: Label{ID: "19", WaterType: "W", Date: target}, Name: "19W19102022", Cell: raster.Cell{Row: 2, Col: 3}, X: 35, Y: 75, PolyAreaM2: 900}
}

func TestRowStacksBothSensors(t *testing.T) {
	e := enricher(radar(target.Add(2*24*time.Hour)), optical(target.Add(-24*time.Hour), false))
	row, err := e.Row(context.Background(), sample())
	require.NoError(t, err)

	assert.False(t, row.S1Missing || row.S2Missing || row.SampleMissing)
	assert.Equal(t, -12.0, row.Bands["VV"])
	assert.Equal(t, 100.0, row.Bands["B2"])
	assert.Len(t, row.Bands, 10)
	assert.InDelta(t, 2, row.S1DayDiff.OrElse(-1), 1e-9)
	assert.InDelta(t, 1, row.S2DayDiff.OrElse(-1), 1e-9)
	s1, ok := row.S1Time.Get()
	require.True(t, ok)
	assert.Equal(t, 21, s1.Day())
}

func TestRowFlagsMissingSensor(t *testing.T) {
	e := enricher(radar(target), optical(target.Add(5*24*time.Hour), false))
	row, err := e.Row(context.Background(), sample())
	require.NoError(t, err)
	assert.False(t, row.S1Missing)
	assert.True(t, row.S2Missing)
	assert.Nil(t, row.Bands)
	assert.False(t, row.S1DayDiff.Present())
}

func TestRowFlagsMaskedSample(t *testing.T) {
	e := enricher(radar(target), optical(target, true))
	row, err := e.Row(context.Background(), sample())
	require.NoError(t, err)
	assert.True(t, row.SampleMissing)
	assert.Nil(t, row.Bands)
}

func TestEnrichAndWriteCSV(t *testing.T) {
	e := enricher(radar(target), optical(target, false))
	other := sample()
	other.Name = "20W01012020"
	other.Date = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	rows, err := e.Enrich(context.Background(), []Sample{sample(), other})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "19W19102022", rows[0].Name)
	assert.True(t, rows[1].S1Missing)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, Header(), recs[0])

	col := func(name string) int {
		for i, h := range recs[0] {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s not found", name)
		return -1
	}
	assert.Equal(t, "-12", recs[1][col("VV")])
	assert.Equal(t, "0", recs[1][col("s1_day_diff")])
	assert.Equal(t, "2022-10-19 00:00:00", recs[1][col("s1_datetime_utc")])
	assert.Equal(t, "10", recs[1][col("month")])
	assert.Equal(t, "", recs[2][col("VV")])
	assert.Equal(t, "1", recs[2][col("s1_missing")])
	assert.Equal(t, "", recs[2][col("s2_datetime_utc")])
}
