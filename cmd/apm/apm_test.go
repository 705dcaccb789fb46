package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/apmkit/config"
	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/linear"
	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/neighbors"
	"github.com/YuminosukeSato/apmkit/pipeline"
	"github.com/YuminosukeSato/apmkit/pkg/log"
	"github.com/YuminosukeSato/apmkit/store"
	"github.com/YuminosukeSato/apmkit/tune"
)

func experiment(t *testing.T, dir string) *config.Experiment {
	t.Helper()
	src := `
name: sim
data:
  dataset: friedman1
split:
  train_fraction: 0.8
  seed: 3
preprocess:
  - name: center_scale
models:
  - name: ridge
    grid:
      lambda: [0.1, 0.01]
  - name: pls
    grid:
      ncomp: [1, 2, 3]
resampling:
  folds: 3
n_jobs: 2
output:
  dir: ` + dir + `
  db: ` + filepath.Join(dir, "runs.db") + `
  plots: true
  plot_format: svg
  weights: true
  metrics_file: ` + filepath.Join(dir, "apm.prom") + `
`
	exp, err := config.Parse([]byte(src))
	require.NoError(t, err)
	return exp
}

func TestRunExperiment(t *testing.T) {
	dir := t.TempDir()
	exp := experiment(t, dir)

	var out bytes.Buffer
	outcomes, err := runExperiment(context.Background(), exp, &out)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	for _, o := range outcomes {
		res := o.Result
		assert.True(t, res.HasTest)
		assert.Greater(t, o.RunID, int64(0))
		for _, f := range o.Files {
			assert.FileExists(t, f)
		}
	}
	assert.Equal(t, "center_scale+ridge", outcomes[0].Result.Model)
	assert.Equal(t, "center_scale+pls", outcomes[1].Result.Model)

	text := out.String()
	assert.Contains(t, text, "Summary")
	assert.Contains(t, text, "selected (best)")
	assert.Contains(t, text, "test: RMSE")

	w, err := model.LoadWeights(filepath.Join(dir, "sim-ridge.weights.json"))
	require.NoError(t, err)
	assert.Len(t, w.Coefficients, 10)
	assert.Equal(t, "center_scale+ridge", w.Metadata["pipeline"])
	assert.FileExists(t, filepath.Join(dir, "sim-pls-importance.svg"))
	assert.FileExists(t, filepath.Join(dir, "sim-pls-profile.svg"))

	prom, err := os.ReadFile(filepath.Join(dir, "apm.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "apm_fits_total")
	assert.Contains(t, string(prom), "apm_tune_runs_total 2")

	db, err := store.Open(exp.Output.DB)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	rec, err := db.GetRun(context.Background(), outcomes[1].RunID)
	require.NoError(t, err)
	assert.Len(t, rec.CV, 3)
	assert.Equal(t, []string{"center_scale"}, rec.Preprocess)
	assert.NotEmpty(t, rec.Weights)
}

func TestTestPredictionsMatchTestRows(t *testing.T) {
	exp := experiment(t, t.TempDir())
	exp.Output.DB = ""
	exp.Output.Plots = false
	exp.Output.Weights = false
	exp.Output.MetricsFile = ""

	frame, err := exp.LoadFrame()
	require.NoError(t, err)
	data, features, err := experimentData(exp, frame)
	require.NoError(t, err)
	assert.Len(t, features, 10)

	outcomes, err := runExperiment(context.Background(), exp, &bytes.Buffer{})
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Len(t, o.Result.TestPredictions, data.YTest.Len())
	}
}

func TestExperimentDataWithoutTestPartition(t *testing.T) {
	exp := experiment(t, t.TempDir())
	exp.Split.TrainFraction = 1
	frame, err := exp.LoadFrame()
	require.NoError(t, err)

	data, _, err := experimentData(exp, frame)
	require.NoError(t, err)
	assert.Nil(t, data.XTest)
	rows, _ := data.XTrain.Dims()
	assert.Equal(t, 200, rows)
}

func TestWeightsJSON(t *testing.T) {
	f, err := dataset.Friedman1(60, 1, 2)
	require.NoError(t, err)
	X, features := f.Dummies(true)
	y, err := f.Response()
	require.NoError(t, err)

	ridge := pipeline.New(linear.NewRidge())
	require.NoError(t, ridge.Fit(X, y))
	knn := pipeline.New(neighbors.NewKNNRegressor())
	require.NoError(t, knn.Fit(X, y))

	t.Run("exports coefficients", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelDebug)
		w := weightsJSON(&tune.Result{Model: "ridge", Final: ridge}, features, logger)
		require.NotNil(t, w)
		var back model.ModelWeights
		require.NoError(t, back.FromJSON(w))
		assert.Equal(t, features, back.Features)
	})

	t.Run("feature name mismatch is logged", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelDebug)
		w := weightsJSON(&tune.Result{Model: "ridge", Final: ridge}, features[:2], logger)
		assert.Nil(t, w)
		assert.True(t, logger.ContainsMessage("Weights not exported"))
		assert.True(t, logger.ContainsField("level", "WARN"))
	})

	t.Run("model without weights", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelInfo)
		assert.Nil(t, weightsJSON(&tune.Result{Model: "knn", Final: knn}, features, logger))
		assert.False(t, logger.ContainsMessage("Weights not exported"))
	})
}

func TestProfileAxes(t *testing.T) {
	rows := func(grid tune.Grid) []tune.CVRow {
		var out []tune.CVRow
		for i, p := range tune.ExpandGrid(grid) {
			out = append(out, tune.CVRow{Index: i, Params: p})
		}
		return out
	}
	tests := []struct {
		name     string
		grid     tune.Grid
		x, group string
	}{
		{"empty", tune.Grid{}, "", ""},
		{"single value", tune.Grid{"lambda": {0.1}}, "", ""},
		{"one parameter", tune.Grid{"lambda": {0.1, 0.01}}, "lambda", ""},
		{"two parameters", tune.Grid{"alpha": {1.0, 0.5}, "lambda": {0.1, 0.01, 0.001}}, "lambda", "alpha"},
		{"non numeric ignored", tune.Grid{"kind": {"a", "b", "c"}, "k": {1, 3}}, "k", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, group := profileAxes(rows(tt.grid))
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.group, group)
		})
	}
}

func TestSimulate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, simulate(&buf, 30, 1, 7))

	f, err := dataset.ReadCSV(&buf, dataset.ReadOptions{Response: "y"})
	require.NoError(t, err)
	assert.Equal(t, 30, f.Rows())
	assert.Len(t, f.NumericNames, 10)
}

func TestExploreFrame(t *testing.T) {
	csv := "a,b,c,y\n1,2,0,1\n2,4,0,2\n3,6.1,0,3\n4,NA,0,4\n5,10,0,5\n"
	f, err := dataset.ReadCSV(strings.NewReader(csv), dataset.ReadOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exploreFrame(&buf, f, 0.9))
	text := buf.String()
	assert.Contains(t, text, "5 rows, 3 numeric and 0 categorical predictors, response y")
	assert.Contains(t, text, "Missing values (1 of 5 rows incomplete)")
	assert.Contains(t, text, "Highly correlated pairs")
	assert.Contains(t, text, "near-zero variance: c")
}

func TestTablesForCommands(t *testing.T) {
	ds := dataset.Registered()
	assert.Len(t, datasetsTable(ds).Rows, len(ds))

	rec := store.RunRecord{
		ID:         4,
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Dataset:    "sim",
		Model:      "ridge",
		Selection:  "oneSE",
		Folds:      10,
		Repeats:    1,
		BestParams: tune.Params{"lambda": 0.1},
		HasTest:    true,
		Test:       metrics.Summary{RMSE: 1.5, Rsquared: 0.8, MAE: 1.1},
		CV: []store.CVRecord{
			{GridIndex: 0, Params: tune.Params{"lambda": 0.1}, Mean: metrics.Summary{RMSE: 1.4}},
			{GridIndex: 1, Params: tune.Params{"lambda": 0.01}, Error: "singular"},
		},
	}
	runs := runsTable([]store.RunRecord{rec})
	require.Len(t, runs.Rows, 1)
	assert.Equal(t, "4", runs.Rows[0][0])
	assert.Equal(t, "1.5", runs.Rows[0][6])

	var buf bytes.Buffer
	require.NoError(t, showRun(&buf, rec))
	assert.Contains(t, buf.String(), "run 4: ridge on sim")
	assert.Contains(t, buf.String(), "singular")
}
