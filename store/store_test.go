package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/tune"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult() *tune.Result {
	return &tune.Result{
		Model:      "ridge",
		Resampling: tune.Resampling{Folds: 10, Repeats: 2, Seed: 1 << 63},
		Selection:  tune.SelectOneSE,
		Rows: []tune.CVRow{
			{Index: 0, Params: tune.Params{"lambda": 0.1}, Mean: metrics.Summary{RMSE: 0.7, Rsquared: 0.8, MAE: 0.5},
				SD: metrics.Summary{RMSE: 0.1, Rsquared: 0.05, MAE: 0.08}},
			{Index: 1, Params: tune.Params{"lambda": 0.0}, Mean: metrics.Summary{RMSE: 0.69, Rsquared: math.NaN(), MAE: 0.49},
				SD: metrics.Summary{RMSE: 0.1, Rsquared: math.NaN(), MAE: 0.07}},
			{Index: 2, Params: tune.Params{"lambda": -1.0}, Mean: metrics.Summary{RMSE: math.NaN()},
				Err: errors.New("lambda must be non-negative")},
		},
		Selected:   0,
		BestParams: tune.Params{"lambda": 0.1},
		HasTest:    true,
		Test:       metrics.Summary{RMSE: 0.72, Rsquared: 0.79, MAE: 0.51},
		Duration:   1500 * time.Millisecond,
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	rec := FromResult("solubility", []string{"boxcox", "center_scale"}, sampleResult())
	rec.Weights = []byte(`{"model_type":"Ridge"}`)
	id, err := s.SaveRun(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "solubility", got.Dataset)
	assert.Equal(t, "ridge", got.Model)
	assert.Equal(t, []string{"boxcox", "center_scale"}, got.Preprocess)
	assert.Equal(t, "oneSE", got.Selection)
	assert.Equal(t, uint64(1<<63), got.Seed)
	assert.Equal(t, tune.Params{"lambda": 0.1}, got.BestParams)
	assert.True(t, got.HasTest)
	assert.Equal(t, rec.Test, got.Test)
	assert.Equal(t, int64(1500), got.DurationMs)
	assert.Equal(t, rec.Weights, got.Weights)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)

	require.Len(t, got.CV, 3)
	assert.Equal(t, 0.69, got.CV[1].Mean.RMSE)
	assert.True(t, math.IsNaN(got.CV[1].Mean.Rsquared))
	assert.Equal(t, "lambda must be non-negative", got.CV[2].Error)
	assert.Empty(t, got.CV[0].Error)
}

func TestListRuns(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for _, ds := range []string{"glass", "tecator"} {
		_, err := s.SaveRun(ctx, FromResult(ds, nil, sampleResult()))
		require.NoError(t, err)
	}
	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "glass", runs[0].Dataset)
	assert.Equal(t, "tecator", runs[1].Dataset)
	assert.Equal(t, []string{}, runs[0].Preprocess)
	assert.Nil(t, runs[0].CV)

	cv, err := s.CVResults(ctx, runs[1].ID)
	require.NoError(t, err)
	assert.Len(t, cv, 3)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTemp(t)
	_, err := s.GetRun(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveRun(context.Background(), FromResult("permeability", nil, sampleResult()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
