package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // 0 disables comments
	HasHeader bool // first row is returned by Header, not streamed
	TrimSpace bool
}

// CSVStream is a running CSV parse. Rows is closed when parsing ends; Err
// then yields at most one error.
type CSVStream struct {
	Rows   <-chan []string
	Err    <-chan error
	header chan []string
}

// Header blocks until the header row is read. It returns nil when the
// options had no header or the input was empty.
func (s *CSVStream) Header() []string {
	if s.header == nil {
		return nil
	}
	return <-s.header
}

// StreamCSV parses r in a goroutine and streams rows with a variable number
// of fields. The caller must drain Rows.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) *CSVStream {
	rows := make(chan []string, 64)
	errc := make(chan error, 1)
	s := &CSVStream{Rows: rows, Err: errc}
	if opts.HasHeader {
		s.header = make(chan []string, 1)
	}

	go func() {
		defer close(errc)
		defer close(rows)
		if s.header != nil {
			defer close(s.header)
		}

		cr := csv.NewReader(r)
		if opts.Delimiter != 0 {
			cr.Comma = opts.Delimiter
		}
		cr.Comment = opts.Comment
		cr.FieldsPerRecord = -1

		first := true
		for {
			rec, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errc <- eris.Wrap(err, "fetcher: read csv row")
				return
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}
			if first && s.header != nil {
				first = false
				s.header <- rec
				continue
			}
			first = false

			select {
			case rows <- rec:
			case <-ctx.Done():
				errc <- eris.Wrap(ctx.Err(), "fetcher: csv stream cancelled")
				return
			}
		}
	}()
	return s
}

// Index maps column names to positions.
func Index(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return m
}
