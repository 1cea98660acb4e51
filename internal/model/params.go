package model

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Params is the immutable parameter set for one classification run.
// It is passed by value through every component call.
type Params struct {
	Threshold          float64 `json:"threshold" yaml:"threshold"`                     // backscatter dB; below is water
	PerennialThreshold float64 `json:"perennial_threshold" yaml:"perennial_threshold"` // tau_p
	WeekFreq           float64 `json:"week_freq" yaml:"week_freq"`                     // omega
	YearFreq           float64 `json:"year_freq" yaml:"year_freq"`                     // gamma
	DilationM          float64 `json:"dilation_m" yaml:"dilation_m"`
	MinAreaSqm         float64 `json:"min_area_sqm" yaml:"min_area_sqm"`
}

// Validate rejects thresholds for which classification is undefined and
// logs a warning for thresholds sitting on the [0,1] boundary.
func (p Params) Validate() error {
	if p.PerennialThreshold <= 0 || p.PerennialThreshold > 1 {
		return eris.Wrapf(ErrDegenerateThreshold, "perennial threshold %v outside (0,1]", p.PerennialThreshold)
	}
	if p.WeekFreq < 0 || p.WeekFreq > 1 {
		return eris.Wrapf(ErrDegenerateThreshold, "week freq %v outside [0,1]", p.WeekFreq)
	}
	if p.YearFreq < 0 || p.YearFreq > 1 {
		return eris.Wrapf(ErrDegenerateThreshold, "year freq %v outside [0,1]", p.YearFreq)
	}
	if p.DilationM < 0 {
		return eris.Errorf("params: dilation %v must not be negative", p.DilationM)
	}
	if p.MinAreaSqm < 0 {
		return eris.Errorf("params: min area %v must not be negative", p.MinAreaSqm)
	}

	for name, v := range map[string]float64{
		"perennial_threshold": p.PerennialThreshold,
		"week_freq":           p.WeekFreq,
		"year_freq":           p.YearFreq,
	} {
		if v == 0 || v == 1 {
			zap.L().Warn("params: threshold on boundary", zap.String("param", name), zap.Float64("value", v))
		}
	}
	return nil
}

// SweepKey is the descriptive key for a combination, e.g. "roc_Y0.9_W0.6".
func (p Params) SweepKey(metric string) string {
	return fmt.Sprintf("%s_Y%g_W%g", metric, p.YearFreq, p.WeekFreq)
}
