package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "regions", []string{"a"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom(t *testing.T) {
	tests := []struct {
		name  string
		table string
		ident pgx.Identifier
	}{
		{"plain", "regions", pgx.Identifier{"regions"}},
		{"schema", "flood.regions", pgx.Identifier{"flood", "regions"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectCopyFrom(tt.ident, []string{"key", "area_m2"}).WillReturnResult(2)
			n, err := CopyFrom(context.Background(), mock, tt.table, []string{"key", "area_m2"}, [][]any{{"a", 1.0}, {"b", 2.0}})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"regions"}, []string{"a"}).WillReturnError(fmt.Errorf("copy failed"))
	_, err = CopyFrom(context.Background(), mock, "regions", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO regions")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_Validation(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t"}, [][]any{{1}})
	assert.ErrorContains(t, err, "no columns")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"a"}}, [][]any{{1}})
	assert.ErrorContains(t, err, "no conflict keys")

	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{}, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{
		Table:        "combinations",
		Columns:      []string{"run_id", "idx", "tpr"},
		ConflictKeys: []string{"run_id", "idx"},
	}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_combinations"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_combinations"}, cfg.Columns).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("run_id", "idx"\) DO UPDATE SET "tpr" = EXCLUDED."tpr"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, [][]any{{"r", 0, 0.5}, {"r", 1, 0.7}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpsertSQL_DoNothing(t *testing.T) {
	sql := upsertSQL(UpsertConfig{Table: "flood.t", Columns: []string{"k"}, ConflictKeys: []string{"k"}}, `"tmp"`)
	assert.Equal(t, `INSERT INTO "flood"."t" ("k") SELECT "k" FROM "tmp" ON CONFLICT ("k") DO NOTHING`, sql)
}
