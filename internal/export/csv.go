package export

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/region"
)

// CSVSink writes {key}.csv with one row per region.
type CSVSink struct {
	Dir string
}

func (s *CSVSink) Name() string { return FormatCSV }

var regionHeader = []string{
	"key", "year", "period", "region_id", "area_m2", "cells", "centroid_x", "centroid_y",
	"threshold", "perennial_threshold", "week_freq", "year_freq", "dilation_m", "min_area_sqm",
}

func (s *CSVSink) Write(_ context.Context, set region.Set, meta Meta) error {
	if err := ensureDir(s.Dir); err != nil {
		return err
	}
	f, err := os.Create(path(s.Dir, meta.Key, ".csv"))
	if err != nil {
		return eris.Wrapf(err, "export: create csv %s", meta.Key)
	}
	defer f.Close() //nolint:errcheck
	return WriteRegionsCSV(f, set, meta)
}

// WriteRegionsCSV writes the region table for set to w.
func WriteRegionsCSV(w io.Writer, set region.Set, meta Meta) error {
	feats, err := features(set)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(regionHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	p := meta.Params
	for _, f := range feats {
		rec := []string{
			meta.Key,
			strconv.Itoa(meta.Selection.Year),
			strconv.Itoa(meta.Selection.Index),
			strconv.Itoa(f.ID),
			ftoa(f.Area),
			strconv.Itoa(f.Cells),
			ftoa(f.CX),
			ftoa(f.CY),
			ftoa(p.Threshold), ftoa(p.PerennialThreshold), ftoa(p.WeekFreq), ftoa(p.YearFreq),
			ftoa(p.DilationM), ftoa(p.MinAreaSqm),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "export: write region %d", f.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
