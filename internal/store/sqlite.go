package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/flood-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	method       TEXT NOT NULL,
	sel_year     INTEGER NOT NULL,
	sel_index    INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	auc          REAL NOT NULL DEFAULT 0,
	best         INTEGER,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS combinations (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	idx                 INTEGER NOT NULL,
	threshold           REAL NOT NULL,
	perennial_threshold REAL NOT NULL,
	week_freq           REAL NOT NULL,
	year_freq           REAL NOT NULL,
	dilation_m          REAL NOT NULL,
	min_area_sqm        REAL NOT NULL,
	tp                  INTEGER NOT NULL,
	fp                  INTEGER NOT NULL,
	fn                  INTEGER NOT NULL,
	tn                  INTEGER NOT NULL,
	tpr                 REAL NOT NULL,
	fpr                 REAL NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, method string, sel model.PeriodKey) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, method, sel_year, sel_index, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, method, sel.Year, sel.Index, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{
		ID:        id,
		Method:    method,
		Selection: sel,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, auc float64, best *int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, auc = ?, best = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), auc, nullInt(best), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const runColumns = `id, method, sel_year, sel_index, status, auc, best, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.Method != "" {
		where = append(where, `method = ?`)
		args = append(args, filter.Method)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveCombinations(ctx context.Context, runID string, results ...model.CombinationResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO combinations (`+
		strings.Join(combinationColumns, ", ")+`) VALUES (?`+strings.Repeat(", ?", len(combinationColumns)-1)+`)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare combination insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, combinationRow(runID, r)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert combination %d of run %s", r.Index, runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit combinations")
}

func (s *SQLiteStore) ListCombinations(ctx context.Context, runID string) ([]model.CombinationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(combinationColumns[1:], ", ")+` FROM combinations WHERE run_id = ? ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list combinations %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CombinationResult
	for rows.Next() {
		r, err := scanCombination(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan combination")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list combinations iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var best sql.NullInt64
	if err := row.Scan(&r.ID, &r.Method, &r.Selection.Year, &r.Selection.Index,
		&status, &r.AUC, &best, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if best.Valid {
		b := int(best.Int64)
		r.Best = &b
	}
	return &r, nil
}
