package source

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/raster"
)

// csvColumns is the required header of an observation CSV.
var csvColumns = []string{"sensor", "timestamp", "row", "col", "band", "value"}

// CSVSource serves observations loaded from long-format CSV rows
// sensor,timestamp,row,col,band,value. Rows sharing sensor and timestamp form
// one observation; cells not listed stay invalid.
type CSVSource struct {
	*MemorySource
}

// OpenCSV loads path onto grid.
func OpenCSV(ctx context.Context, path string, grid raster.Grid) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open csv")
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(ctx, f, grid)
}

// ReadCSV loads observations from r onto grid.
func ReadCSV(ctx context.Context, r io.Reader, grid raster.Grid) (*CSVSource, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	s := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{HasHeader: true, TrimSpace: true, Comment: '#'})
	idx := fetcher.Index(s.Header())
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			for range s.Rows {
			}
			return nil, eris.Errorf("source: csv missing column %q", c)
		}
	}

	b := newBuilder(grid)
	var line, skipped int
	var rowErr error
	for rec := range s.Rows {
		line++
		if rowErr != nil {
			continue
		}
		get := func(col string) string {
			if i := idx[col]; i < len(rec) {
				return rec[i]
			}
			return ""
		}
		ts, err := time.Parse(time.RFC3339, get("timestamp"))
		if err != nil {
			rowErr = eris.Wrapf(err, "source: csv row %d timestamp", line)
			continue
		}
		row, err1 := strconv.Atoi(get("row"))
		col, err2 := strconv.Atoi(get("col"))
		val, err3 := strconv.ParseFloat(get("value"), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			rowErr = eris.Errorf("source: csv row %d has non-numeric row/col/value", line)
			continue
		}
		if !b.add(get("sensor"), ts, get("band"), raster.Cell{Row: row, Col: col}, val) {
			skipped++
		}
	}
	if err := <-s.Err; err != nil {
		return nil, err
	}
	if rowErr != nil {
		return nil, rowErr
	}
	if skipped > 0 {
		zap.L().Warn("source: csv cells outside grid ignored", zap.Int("rows", skipped))
	}
	return &CSVSource{MemorySource: NewMemorySource(b.observations()...)}, nil
}

// builder groups long-format cell values into observations.
type builder struct {
	grid  raster.Grid
	obs   map[string]*Observation
	order []string
}

func newBuilder(g raster.Grid) *builder {
	return &builder{grid: g, obs: make(map[string]*Observation)}
}

// add records one value. It returns false when the cell is outside the grid.
func (b *builder) add(sensor string, ts time.Time, band string, c raster.Cell, v float64) bool {
	if !b.grid.Contains(c) {
		return false
	}
	ts = ts.UTC()
	id := sensor + "_" + ts.Format("20060102T150405")
	o, ok := b.obs[id]
	if !ok {
		o = &Observation{ID: id, Sensor: sensor, Time: ts, Bands: make(map[string]raster.Field)}
		b.obs[id] = o
		b.order = append(b.order, id)
	}
	f, ok := o.Bands[band]
	if !ok {
		f = raster.NewField(b.grid)
		o.Bands[band] = f
	}
	f.Set(b.grid.Index(c), v)
	return true
}

func (b *builder) observations() []Observation {
	out := make([]Observation, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.obs[id])
	}
	return out
}
