package model

import (
	"fmt"
	"time"
)

// PeriodKey identifies a period by its season year and index from season start.
type PeriodKey struct {
	Year  int `json:"year" yaml:"year"`
	Index int `json:"index" yaml:"index"`
}

// ExportKey is the descriptive key handed to export sinks, e.g. "2019_biweek_3".
func (k PeriodKey) ExportKey() string {
	return fmt.Sprintf("%d_biweek_%d", k.Year, k.Index)
}

func (k PeriodKey) String() string { return k.ExportKey() }

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Period is one fixed-length bucket of a season.
type Period struct {
	PeriodKey
	Window
}
