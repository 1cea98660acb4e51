// Package store persists sweep runs and their per-combination results.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Method string          `json:"method,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for sweep runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, method string, sel model.PeriodKey) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, auc float64, best *int) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Combinations
	SaveCombinations(ctx context.Context, runID string, results ...model.CombinationResult) error
	ListCombinations(ctx context.Context, runID string) ([]model.CombinationResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// combinationColumns is the column order shared by both backends.
var combinationColumns = []string{
	"run_id", "idx",
	"threshold", "perennial_threshold", "week_freq", "year_freq", "dilation_m", "min_area_sqm",
	"tp", "fp", "fn", "tn", "tpr", "fpr",
}

func combinationRow(runID string, r model.CombinationResult) []any {
	return []any{
		runID, r.Index,
		r.Params.Threshold, r.Params.PerennialThreshold, r.Params.WeekFreq, r.Params.YearFreq,
		r.Params.DilationM, r.Params.MinAreaSqm,
		r.Counts.TP, r.Counts.FP, r.Counts.FN, r.Counts.TN, r.TPR, r.FPR,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCombination(row scannable) (model.CombinationResult, error) {
	var r model.CombinationResult
	err := row.Scan(&r.Index,
		&r.Params.Threshold, &r.Params.PerennialThreshold, &r.Params.WeekFreq, &r.Params.YearFreq,
		&r.Params.DilationM, &r.Params.MinAreaSqm,
		&r.Counts.TP, &r.Counts.FP, &r.Counts.FN, &r.Counts.TN, &r.TPR, &r.FPR,
	)
	return r, err
}
