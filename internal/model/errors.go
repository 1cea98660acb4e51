package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrDataGap is matched by errors.Is for any DataGapError.
	ErrDataGap = eris.New("no observations in window")
	// ErrSelectionNotFound is matched by errors.Is for any SelectionNotFoundError.
	ErrSelectionNotFound = eris.New("no data for selection")
	// ErrDegenerateThreshold is returned by Params.Validate.
	ErrDegenerateThreshold = eris.New("degenerate threshold")
)

// DataGapError reports a period or sensor window that returned zero observations.
type DataGapError struct {
	Sensor string
	Window Window
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap: sensor %q has no observations in [%s, %s)",
		e.Sensor, e.Window.Start.Format("2006-01-02"), e.Window.End.Format("2006-01-02"))
}

func (e *DataGapError) Is(target error) bool { return target == ErrDataGap }

// SelectionNotFoundError reports a (year, period) with no mask at all.
type SelectionNotFoundError struct {
	Key PeriodKey
}

func (e *SelectionNotFoundError) Error() string {
	return fmt.Sprintf("no data for selection %s", e.Key)
}

func (e *SelectionNotFoundError) Is(target error) bool { return target == ErrSelectionNotFound }
