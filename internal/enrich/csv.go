package enrich

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

const datetimeLayout = "2006-01-02 15:04:05"

// Header returns the CSV column order.
func Header() []string {
	h := []string{"id", "name"}
	h = append(h, model.OpticalBands...)
	h = append(h, "VH", "VV")
	return append(h,
		"latitude", "longitude", "day", "month", "year", "poly_area_m2", "waterType",
		"s1_day_diff", "s2_day_diff", "s1_missing", "s2_missing", "sample_missing",
		"s1_datetime_utc", "s2_datetime_utc",
	)
}

// WriteCSV writes rows with a header. Absent values are empty fields.
func WriteCSV(w io.Writer, rows []model.SampleRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return eris.Wrap(err, "enrich: write header")
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return eris.Wrapf(err, "enrich: write row %s", r.Name)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "enrich: flush csv")
}

func record(r model.SampleRow) []string {
	rec := []string{r.ID, r.Name}
	bandCols := append(append([]string{}, model.OpticalBands...), "VH", "VV")
	for _, b := range bandCols {
		if v, ok := r.Bands[b]; ok {
			rec = append(rec, ftoa(v))
		} else {
			rec = append(rec, "")
		}
	}
	rec = append(rec,
		ftoa(r.Latitude),
		ftoa(r.Longitude),
		strconv.Itoa(r.Date.Day()),
		strconv.Itoa(int(r.Date.Month())),
		strconv.Itoa(r.Date.Year()),
		ftoa(r.PolyAreaM2),
		r.WaterType,
		maybeFloat(r.S1DayDiff),
		maybeFloat(r.S2DayDiff),
		flag(r.S1Missing),
		flag(r.S2Missing),
		flag(r.SampleMissing),
		maybeTime(r.S1Time),
		maybeTime(r.S2Time),
	)
	return rec
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func maybeFloat(m model.Maybe[float64]) string {
	if v, ok := m.Get(); ok {
		return ftoa(v)
	}
	return ""
}

func maybeTime(m model.Maybe[time.Time]) string {
	if v, ok := m.Get(); ok {
		return v.Format(datetimeLayout)
	}
	return ""
}
