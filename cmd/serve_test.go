package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedRun(t *testing.T, st store.Store) *model.Run {
	t.Helper()
	ctx := context.Background()
	run, err := st.CreateRun(ctx, "cells", model.PeriodKey{Year: 2019, Index: 4})
	require.NoError(t, err)
	require.NoError(t, st.SaveCombinations(ctx, run.ID,
		model.CombinationResult{Index: 0, Counts: model.ConfusionCounts{TP: 4, FP: 1, FN: 1, TN: 10}, TPR: 0.8, FPR: 1.0 / 11},
		model.CombinationResult{Index: 1, Counts: model.ConfusionCounts{TP: 5, TN: 11}, TPR: 1, FPR: 0},
	))
	best := 1
	require.NoError(t, st.CompleteRun(ctx, run.ID, 0.9, &best))
	return run
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := get(t, newRouter(newTestStore(t)), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_ListRuns(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)
	h := newRouter(st)

	rec := get(t, h, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)

	rec = get(t, h, "/runs?method=polygons")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRouter_ListRuns_BadLimit(t *testing.T) {
	rec := get(t, newRouter(newTestStore(t)), "/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GetRun(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)

	rec := get(t, newRouter(st), "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.InDelta(t, 0.9, got.AUC, 1e-9)
	require.NotNil(t, got.Best)
	assert.Equal(t, 1, *got.Best)
}

func TestRouter_GetRun_NotFound(t *testing.T) {
	h := newRouter(newTestStore(t))

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/missing").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/missing/combinations").Code)
}

func TestRouter_Combinations(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)

	rec := get(t, newRouter(st), "/runs/"+run.ID+"/combinations")
	require.Equal(t, http.StatusOK, rec.Code)

	var combos []model.CombinationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &combos))
	require.Len(t, combos, 2)
	assert.Equal(t, 0, combos[0].Index)
	assert.Equal(t, int64(5), combos[1].Counts.TP)
}

func TestRouter_CORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	newRouter(newTestStore(t)).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
