package export

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/flood-cli/internal/db"
	"github.com/sells-group/flood-cli/internal/region"
)

// EWKBSink writes {key}.ewkb.csv: region id, area and hex EWKB geometry,
// ready for a PostGIS COPY.
type EWKBSink struct {
	Dir string
}

func (s *EWKBSink) Name() string { return FormatEWKB }

func (s *EWKBSink) Write(_ context.Context, set region.Set, meta Meta) error {
	feats, err := features(set)
	if err != nil {
		return err
	}
	if err := ensureDir(s.Dir); err != nil {
		return err
	}
	f, err := os.Create(path(s.Dir, meta.Key, ".ewkb.csv"))
	if err != nil {
		return eris.Wrapf(err, "export: create ewkb %s", meta.Key)
	}
	defer f.Close() //nolint:errcheck

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"region_id", "area_m2", "geom"}); err != nil {
		return eris.Wrap(err, "export: write ewkb header")
	}
	for _, ft := range feats {
		b, err := ewkb.Marshal(ft.Geometry, ewkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "export: marshal region %d", ft.ID)
		}
		if err := cw.Write([]string{strconv.Itoa(ft.ID), ftoa(ft.Area), hex.EncodeToString(b)}); err != nil {
			return eris.Wrapf(err, "export: write region %d", ft.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush ewkb")
}

// PostgresSink copies regions into a table with columns
// key, region_id, area_m2, cells, geom (EWKB bytes), created_at.
type PostgresSink struct {
	Pool  db.Pool
	Table string // default "regions"
	now   func() time.Time
}

func (s *PostgresSink) Name() string { return "postgres" }

var regionColumns = []string{"key", "region_id", "area_m2", "cells", "geom", "created_at"}

func (s *PostgresSink) Write(ctx context.Context, set region.Set, meta Meta) error {
	feats, err := features(set)
	if err != nil {
		return err
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	ts := now().UTC()

	rows := make([][]any, 0, len(feats))
	for _, ft := range feats {
		b, err := ewkb.Marshal(ft.Geometry, ewkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "export: marshal region %d", ft.ID)
		}
		rows = append(rows, []any{meta.Key, ft.ID, ft.Area, ft.Cells, b, ts})
	}

	table := s.Table
	if table == "" {
		table = "regions"
	}
	_, err = db.CopyFrom(ctx, s.Pool, table, regionColumns, rows)
	return err
}
