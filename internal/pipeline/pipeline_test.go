package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/region"
	"github.com/sells-group/flood-cli/internal/season"
	"github.com/sells-group/flood-cli/internal/source"
)

// 1x4 strip of 100 m cells:
//
//	cell 0: water in every historical period -> perennial
//	cell 1: never water -> non-water
//	cell 2: water once in six periods, water now -> flood
//	cell 3: water at index 1 every year, water now only -> seasonal
var strip = raster.Grid{OriginX: 500000, OriginY: 3000000, CellSize: 100, Width: 4, Height: 1}

var history = map[int][3][]float64{
	2019: {{-20, -10, -10, -10}, {-20, -10, -20, -20}, {-20, -10, -10, -10}},
	2020: {{-20, -10, -10, -10}, {-20, -10, -10, -20}, {-20, -10, -10, -10}},
	2021: {{-10, -10, -10, -10}, {-10, -10, -20, -20}, {-10, -10, -10, -10}},
}

var params = model.Params{
	Threshold:          -16,
	PerennialThreshold: 0.9,
	WeekFreq:           0.6,
	YearFreq:           0.8,
}

var sel = model.PeriodKey{Year: 2021, Index: 1}

// may is a one-month season: 30 days in 14-day periods gives three periods.
var may = season.Season{StartMonth: 5, EndMonth: 5, PeriodDays: 14}

func composites(year int) []season.Composite {
	var out []season.Composite
	for i, vals := range history[year] {
		f := raster.NewField(strip)
		for c, v := range vals {
			f.Set(c, v)
		}
		p, _ := may.Period(year, i)
		out = append(out, season.Composite{Period: p, Mean: model.Some(f)})
	}
	return out
}

func memorySource() *source.MemorySource {
	src := source.NewMemorySource()
	for year, periods := range history {
		for i, vals := range periods {
			f := raster.NewField(strip)
			for c, v := range vals {
				f.Set(c, v)
			}
			p, _ := may.Period(year, i)
			src.Add(source.Observation{
				ID:     p.PeriodKey.String(),
				Sensor: "S1",
				Time:   p.Start.Add(24 * time.Hour),
				Bands:  map[string]raster.Field{"VV": f},
			})
		}
	}
	return src
}

func TestClassifyStrip(t *testing.T) {
	hist := append(composites(2019), composites(2020)...)
	res, err := Classify(strip, hist, composites(2021), params, sel, region.Options{Connectivity: 4}, DefaultTargets)
	require.NoError(t, err)

	assert.Equal(t, []model.Class{
		model.ClassPerennial, model.ClassNonWater, model.ClassUnclassified, model.ClassUnclassified,
	}, res.Baseline.Classes)
	assert.Equal(t, []model.Class{
		model.ClassPerennial, model.ClassNonWater, model.ClassFlood, model.ClassSeasonal,
	}, res.Classification.Classes)

	require.Equal(t, 1, res.Regions.Len())
	assert.InDelta(t, 20000, res.Regions.TotalArea(), 1e-6)
	assert.Equal(t, "2021_biweek_1", res.Key())

	var names []string
	for _, ph := range res.Phases {
		names = append(names, ph.Name)
	}
	assert.Equal(t, []string{"masks", "frequency", "baseline", "period", "regions"}, names)
}

func TestClassifyMinAreaDropsRegion(t *testing.T) {
	p := params
	p.MinAreaSqm = 30000
	hist := append(composites(2019), composites(2020)...)
	res, err := Classify(strip, hist, composites(2021), p, sel, region.Options{}, DefaultTargets)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Regions.Len())
}

func TestPipelineRunComposesSelectedYear(t *testing.T) {
	composer := &season.Composer{
		Source:      memorySource(),
		Region:      strip,
		Season:      may,
		Filter:      source.Filter{Sensor: "S1", Bands: []string{"VV"}},
		Band:        "VV",
		Concurrency: 2,
	}
	p := New(composer, []int{2019, 2020}, WithTargets(model.ClassFlood))

	res, err := p.Run(context.Background(), params, sel)
	require.NoError(t, err)
	assert.Equal(t, model.ClassFlood, res.Classification.Classes[2])

	require.Equal(t, 1, res.Regions.Len())
	assert.InDelta(t, 10000, res.Regions.Regions[0].Area, 1e-6)
}

func TestPipelineRunSelectionNotFound(t *testing.T) {
	composer := &season.Composer{
		Source: memorySource(),
		Region: strip,
		Season: may,
		Filter: source.Filter{Sensor: "S1"},
		Band:   "VV",
	}
	p := New(composer, []int{2019, 2020})

	_, err := p.Run(context.Background(), params, model.PeriodKey{Year: 2021, Index: 7})
	assert.ErrorIs(t, err, model.ErrSelectionNotFound)
}

func TestPipelineRunGapSelectionExportsNothing(t *testing.T) {
	composer := &season.Composer{
		Source: memorySource(),
		Region: strip,
		Season: may,
		Filter: source.Filter{Sensor: "S1"},
		Band:   "VV",
	}
	p := New(composer, []int{2019, 2020})

	res, err := p.Run(context.Background(), params, model.PeriodKey{Year: 2022, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Regions.Len())
	assert.Equal(t, res.Baseline.Classes, res.Classification.Classes)
}

func TestPipelineRunRejectsDegenerateParams(t *testing.T) {
	p := New(&season.Composer{Source: memorySource(), Region: strip, Season: may, Band: "VV"}, []int{2019})
	bad := params
	bad.PerennialThreshold = 0
	_, err := p.Run(context.Background(), bad, sel)
	assert.ErrorIs(t, err, model.ErrDegenerateThreshold)
}
