package model

import "time"

// Water-type labels carried by sample polygons.
const (
	WaterTypeWater    = "W"
	WaterTypeNonWater = "NW"
)

// RadarBands and OpticalBands are the stacked channels of an enriched sample.
var (
	RadarBands   = []string{"VV", "VH"}
	OpticalBands = []string{"B2", "B3", "B4", "B8", "B5", "B6", "B7", "B8A"}
)

// SampleRow is one enriched sample. Absent bands and offsets are written as
// empty fields, never as zero.
type SampleRow struct {
	ID            string
	Name          string
	Bands         map[string]float64
	Latitude      float64
	Longitude     float64
	Date          time.Time
	PolyAreaM2    float64
	WaterType     string
	S1DayDiff     Maybe[float64]
	S2DayDiff     Maybe[float64]
	S1Missing     bool
	S2Missing     bool
	SampleMissing bool
	S1Time        Maybe[time.Time]
	S2Time        Maybe[time.Time]
}
