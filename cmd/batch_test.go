package main

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/export"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/pipeline"
	"github.com/sells-group/flood-cli/internal/region"
)

// gapClassifier has no data for period 1 and fails outright for year 2000.
type gapClassifier struct{}

func (gapClassifier) Run(_ context.Context, p model.Params, sel model.PeriodKey) (*pipeline.Result, error) {
	switch {
	case sel.Year == 2000:
		return nil, eris.New("backend down")
	case sel.Index == 1:
		return nil, &model.SelectionNotFoundError{Key: sel}
	}
	return &pipeline.Result{Selection: sel, Params: p}, nil
}

type recordingSink struct {
	keys []string
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, _ region.Set, meta export.Meta) error {
	s.keys = append(s.keys, meta.Key)
	return nil
}

func TestRunBatch_SkipsMissingSelections(t *testing.T) {
	sink := &recordingSink{}

	done, skipped, err := runBatch(context.Background(), gapClassifier{}, []export.Sink{sink},
		model.Params{}, []int{2019, 2020}, []int{0, 1, 2})
	require.NoError(t, err)

	assert.Equal(t, 4, done)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, []string{"2019_biweek_0", "2019_biweek_2", "2020_biweek_0", "2020_biweek_2"}, sink.keys)
}

func TestRunBatch_StopsOnOtherErrors(t *testing.T) {
	sink := &recordingSink{}

	done, _, err := runBatch(context.Background(), gapClassifier{}, []export.Sink{sink},
		model.Params{}, []int{2019, 2000}, []int{0})
	require.Error(t, err)

	assert.Equal(t, 1, done)
	assert.Equal(t, []string{"2019_biweek_0"}, sink.keys)
}
