package source

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // driver

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS observations (
	sensor      TEXT    NOT NULL,
	acquired_at TEXT    NOT NULL,
	band        TEXT    NOT NULL,
	row_idx     INTEGER NOT NULL,
	col_idx     INTEGER NOT NULL,
	value       REAL    NOT NULL,
	PRIMARY KEY (sensor, acquired_at, band, row_idx, col_idx)
);

CREATE INDEX IF NOT EXISTS idx_observations_window ON observations(sensor, acquired_at);
`

// sqliteTime is the stored timestamp layout. It sorts lexically in UTC.
const sqliteTime = "2006-01-02T15:04:05.000Z"

// SQLiteSource serves observations from a local catalog database.
type SQLiteSource struct {
	db   *sql.DB
	grid raster.Grid
}

// OpenSQLite opens the catalog at dsn and creates the schema if needed.
func OpenSQLite(ctx context.Context, dsn string, grid raster.Grid) (*SQLiteSource, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "source: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "source: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "source: migrate sqlite")
	}
	return &SQLiteSource{db: db, grid: grid}, nil
}

// Close closes the database.
func (s *SQLiteSource) Close() error { return s.db.Close() }

// Insert stores every valid cell of obs in one transaction.
func (s *SQLiteSource) Insert(ctx context.Context, obs ...Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "source: begin insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO observations (sensor, acquired_at, band, row_idx, col_idx, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "source: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, o := range obs {
		ts := o.Time.UTC().Format(sqliteTime)
		for band, f := range o.Bands {
			for i := range f.Values {
				v, ok := f.At(i)
				if !ok {
					continue
				}
				c := f.Grid.Cell(i)
				if _, err := stmt.ExecContext(ctx, o.Sensor, ts, band, c.Row, c.Col, v); err != nil {
					return eris.Wrapf(err, "source: insert %s", o.ID)
				}
			}
		}
	}
	return eris.Wrap(tx.Commit(), "source: commit insert")
}

// Query implements Source. Rows outside the catalog grid are ignored.
func (s *SQLiteSource) Query(ctx context.Context, region raster.Grid, window model.Window, filter Filter) ([]Observation, error) {
	if !region.Aligned(s.grid) {
		return nil, eris.New("source: region is not on the catalog grid")
	}
	q := `SELECT sensor, acquired_at, band, row_idx, col_idx, value FROM observations
		WHERE acquired_at >= ? AND acquired_at < ?`
	args := []any{window.Start.UTC().Format(sqliteTime), window.End.UTC().Format(sqliteTime)}
	if filter.Sensor != "" {
		q += ` AND sensor = ?`
		args = append(args, filter.Sensor)
	}
	q += ` ORDER BY acquired_at, sensor`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "source: query observations")
	}
	defer rows.Close() //nolint:errcheck

	b := newBuilder(s.grid)
	for rows.Next() {
		var (
			sensor, at, band string
			row, col         int
			v                float64
		)
		if err := rows.Scan(&sensor, &at, &band, &row, &col, &v); err != nil {
			return nil, eris.Wrap(err, "source: scan observation")
		}
		ts, err := time.Parse(sqliteTime, at)
		if err != nil {
			return nil, eris.Wrapf(err, "source: parse acquired_at %q", at)
		}
		b.add(sensor, ts, band, raster.Cell{Row: row, Col: col}, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate observations")
	}

	var out []Observation
	for _, o := range b.observations() {
		if filter.Matches(o) {
			out = append(out, o)
		}
	}
	sortObservations(out)
	return out, nil
}
