// Package season splits a yearly monsoon window into fixed-length periods and
// composes each period's observations into one representative value per cell.
package season

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

// DefaultPeriodDays is the bi-weekly period length.
const DefaultPeriodDays = 14

// Season is the yearly window [StartMonth/1, last day of EndMonth], both inclusive.
type Season struct {
	StartMonth int
	EndMonth   int
	PeriodDays int
}

// Validate checks the month bounds and period length.
func (s Season) Validate() error {
	if s.StartMonth < 1 || s.StartMonth > 12 || s.EndMonth < 1 || s.EndMonth > 12 {
		return eris.Errorf("season: months %d..%d out of range", s.StartMonth, s.EndMonth)
	}
	if s.EndMonth < s.StartMonth {
		return eris.Errorf("season: end month %d before start month %d", s.EndMonth, s.StartMonth)
	}
	if s.PeriodDays <= 0 {
		return eris.Errorf("season: period length %d must be positive", s.PeriodDays)
	}
	return nil
}

// Start returns the first day of the season in year.
func (s Season) Start(year int) time.Time {
	return time.Date(year, time.Month(s.StartMonth), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the season in year.
func (s Season) End(year int) time.Time {
	return time.Date(year, time.Month(s.EndMonth)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// Count returns the number of periods in a season: ceil(days / PeriodDays),
// computed on the fractional span between season start and end.
func (s Season) Count(year int) int {
	days := s.End(year).Sub(s.Start(year)).Hours() / 24
	return int(math.Ceil(days / float64(s.PeriodDays)))
}

// Periods returns the contiguous, non-overlapping periods of year in order.
// The last period may extend past the season end.
func (s Season) Periods(year int) []model.Period {
	start := s.Start(year)
	n := s.Count(year)
	out := make([]model.Period, 0, n)
	for i := 0; i < n; i++ {
		w0 := start.AddDate(0, 0, i*s.PeriodDays)
		out = append(out, model.Period{
			PeriodKey: model.PeriodKey{Year: year, Index: i},
			Window:    model.Window{Start: w0, End: w0.AddDate(0, 0, s.PeriodDays)},
		})
	}
	return out
}

// Period returns the period at index in year.
func (s Season) Period(year, index int) (model.Period, bool) {
	if index < 0 || index >= s.Count(year) {
		return model.Period{}, false
	}
	w0 := s.Start(year).AddDate(0, 0, index*s.PeriodDays)
	return model.Period{
		PeriodKey: model.PeriodKey{Year: year, Index: index},
		Window:    model.Window{Start: w0, End: w0.AddDate(0, 0, s.PeriodDays)},
	}, true
}

// IndexOf returns the period index containing t, counted from season start.
// It returns -1 when t precedes the season.
func (s Season) IndexOf(year int, t time.Time) int {
	d := t.Sub(s.Start(year))
	if d < 0 {
		return -1
	}
	return int(math.Floor(d.Hours() / 24 / float64(s.PeriodDays)))
}
