package groundtruth

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/raster"
)

// ReadGridCSV reads a truth raster written as a headerless matrix: one CSV
// line per grid row, one value per column. Cells equal to value are true.
// Empty fields and "nan" are false.
func ReadGridCSV(ctx context.Context, r io.Reader, g raster.Grid, value float64) (raster.Mask, error) {
	if err := g.Validate(); err != nil {
		return raster.Mask{}, err
	}
	m := raster.NewMask(g)
	s := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true, Comment: '#'})

	var row int
	var rowErr error
	for rec := range s.Rows {
		if rowErr != nil {
			continue
		}
		if row >= g.Height {
			rowErr = eris.Errorf("groundtruth: csv grid has more than %d rows", g.Height)
			continue
		}
		if len(rec) != g.Width {
			rowErr = eris.Errorf("groundtruth: csv grid row %d has %d columns, want %d", row, len(rec), g.Width)
			continue
		}
		for col, field := range rec {
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				rowErr = eris.Wrapf(err, "groundtruth: csv grid row %d col %d", row, col)
				break
			}
			if v == value {
				m.Bits[g.Index(raster.Cell{Row: row, Col: col})] = true
			}
		}
		row++
	}
	if err := <-s.Err; err != nil {
		return raster.Mask{}, err
	}
	if rowErr != nil {
		return raster.Mask{}, rowErr
	}
	if row != g.Height {
		return raster.Mask{}, eris.Errorf("groundtruth: csv grid has %d rows, want %d", row, g.Height)
	}
	return m, nil
}

// OpenGridCSV reads the matrix at path.
func OpenGridCSV(ctx context.Context, path string, g raster.Grid, value float64) (raster.Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return raster.Mask{}, eris.Wrap(err, "groundtruth: open csv grid")
	}
	defer f.Close() //nolint:errcheck
	return ReadGridCSV(ctx, f, g, value)
}
