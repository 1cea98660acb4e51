package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/db"
	"github.com/sells-group/flood-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for subsystems that write directly,
// such as the region sink.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	method     TEXT NOT NULL,
	sel_year   INTEGER NOT NULL,
	sel_index  INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	auc        DOUBLE PRECISION NOT NULL DEFAULT 0,
	best       INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS combinations (
	run_id              TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx                 INTEGER NOT NULL,
	threshold           DOUBLE PRECISION NOT NULL,
	perennial_threshold DOUBLE PRECISION NOT NULL,
	week_freq           DOUBLE PRECISION NOT NULL,
	year_freq           DOUBLE PRECISION NOT NULL,
	dilation_m          DOUBLE PRECISION NOT NULL,
	min_area_sqm        DOUBLE PRECISION NOT NULL,
	tp                  BIGINT NOT NULL,
	fp                  BIGINT NOT NULL,
	fn                  BIGINT NOT NULL,
	tn                  BIGINT NOT NULL,
	tpr                 DOUBLE PRECISION NOT NULL,
	fpr                 DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS regions (
	key        TEXT NOT NULL,
	region_id  INTEGER NOT NULL,
	area_m2    DOUBLE PRECISION NOT NULL,
	cells      INTEGER NOT NULL,
	geom       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_regions_key ON regions(key);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, method string, sel model.PeriodKey) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, method, sel_year, sel_index, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, method, sel.Year, sel.Index, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, auc float64, best *int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, auc = $2, best = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), auc, best, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

const pgRunColumns = `id, method, sel_year, sel_index, status, auc, best, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPGRun(s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf(`status = $%d`, len(args)))
	}
	if filter.Method != "" {
		args = append(args, filter.Method)
		where = append(where, fmt.Sprintf(`method = $%d`, len(args)))
	}

	query := `SELECT ` + pgRunColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, max(filter.Offset, 0))
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveCombinations(ctx context.Context, runID string, results ...model.CombinationResult) error {
	rows := make([][]any, len(results))
	for i, r := range results {
		rows[i] = combinationRow(runID, r)
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "combinations",
		Columns:      combinationColumns,
		ConflictKeys: []string{"run_id", "idx"},
	}, rows)
	return eris.Wrapf(err, "postgres: save combinations for run %s", runID)
}

func (s *PostgresStore) ListCombinations(ctx context.Context, runID string) ([]model.CombinationResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(combinationColumns[1:], ", ")+` FROM combinations WHERE run_id = $1 ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list combinations %s", runID)
	}
	defer rows.Close()

	var out []model.CombinationResult
	for rows.Next() {
		r, err := scanCombination(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan combination")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list combinations iterate")
}

func scanPGRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var best *int32
	if err := row.Scan(&r.ID, &r.Method, &r.Selection.Year, &r.Selection.Index,
		&status, &r.AUC, &best, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if best != nil {
		b := int(*best)
		r.Best = &b
	}
	return &r, nil
}
