package tune

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/linear"
	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/neighbors"
	"github.com/YuminosukeSato/apmkit/pipeline"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pkg/log"
	"github.com/YuminosukeSato/apmkit/pls"
)

func TestExpandGrid(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
		want []Params
	}{
		{
			name: "empty grid is one point",
			grid: Grid{},
			want: []Params{{}},
		},
		{
			name: "last name varies fastest",
			grid: Grid{"lambda": FloatValues(0, 0.1), "alpha": FloatValues(0.5, 1)},
			want: []Params{
				{"alpha": 0.5, "lambda": 0.0},
				{"alpha": 0.5, "lambda": 0.1},
				{"alpha": 1.0, "lambda": 0.0},
				{"alpha": 1.0, "lambda": 0.1},
			},
		},
		{
			name: "values keep their order",
			grid: Grid{"k": IntValues(9, 3, 5)},
			want: []Params{{"k": 9}, {"k": 3}, {"k": 5}},
		},
		{
			name: "empty value list",
			grid: Grid{"k": {}},
			want: []Params{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandGrid(tt.grid))
			assert.Equal(t, len(tt.want), tt.grid.Size())
		})
	}
	assert.Equal(t, IntValues(1, 2, 3), IntRange(1, 3))
}

// checkPartition は各繰り返しで評価行が全行をちょうど 1 回覆うことを確認する
func checkPartition(t *testing.T, n, repeats int, folds []Fold) {
	t.Helper()
	seen := make([]int, n)
	for _, f := range folds {
		assert.True(t, sort.IntsAreSorted(f.Test))
		assert.True(t, sort.IntsAreSorted(f.Train))
		assert.Equal(t, n, len(f.Train)+len(f.Test))
		for _, i := range f.Test {
			seen[i]++
		}
	}
	for i, c := range seen {
		assert.Equal(t, repeats, c, "row %d", i)
	}
}

func TestRepeatedKFold(t *testing.T) {
	folds, err := RepeatedKFold(23, 5, 3, 42)
	require.NoError(t, err)
	require.Len(t, folds, 15)
	checkPartition(t, 23, 3, folds)

	assert.Equal(t, "Fold01.Rep1", folds[0].Name)
	assert.Equal(t, "Fold05.Rep3", folds[14].Name)
	// 先頭の 23 mod 5 = 3 個の fold が 1 行多い
	assert.Len(t, folds[0].Test, 5)
	assert.Len(t, folds[4].Test, 4)

	again, err := RepeatedKFold(23, 5, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, folds, again)

	other, err := RepeatedKFold(23, 5, 3, 43)
	require.NoError(t, err)
	assert.NotEqual(t, folds, other)

	// 繰り返しごとに別の分割になる
	assert.NotEqual(t, folds[0].Test, folds[5].Test)
}

func TestKFoldErrors(t *testing.T) {
	_, err := NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(11, false, 0).Split(10)
	assert.Error(t, err)
	_, err = RepeatedKFold(10, 2, 0, 1)
	assert.Error(t, err)

	folds, err := NewKFold(2, false, 0).Split(4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, folds[0].Test)
	assert.Equal(t, []int{2, 3}, folds[0].Train)
}

func linearData(n int, seed uint64) Data {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		y.SetVec(i, 1+2*X.At(i, 0)-X.At(i, 1)+0.5*rng.NormFloat64())
	}
	return Data{
		XTrain: X.Slice(0, n-20, 0, 3), YTrain: y.SliceVec(0, n-20),
		XTest: X.Slice(n-20, n, 0, 3), YTest: y.SliceVec(n-20, n),
	}
}

func TestTuneRidge(t *testing.T) {
	data := linearData(120, 1)
	grid := Grid{"lambda": FloatValues(10, 1, 0.1, 0)}
	rs := Resampling{Folds: 5, Repeats: 2, Seed: 7}

	res, err := Tune(context.Background(), linear.NewRidge(), grid, rs, data, WithNJobs(4))
	require.NoError(t, err)

	require.Len(t, res.Rows, 4)
	assert.Equal(t, "ridge", res.Model)
	assert.True(t, res.HasTest)
	assert.Len(t, res.TestPredictions, 20)
	for _, row := range res.Rows {
		assert.False(t, row.Failed())
		assert.Len(t, row.Resamples, 10)
		assert.False(t, math.IsNaN(row.Mean.RMSE))
	}
	// λ=10 は明らかに縮小しすぎ
	assert.NotEqual(t, 0, res.Selected)
	assert.Equal(t, res.Rows[res.Selected].Params, res.BestParams)

	ranked := res.Ranking()
	require.Len(t, ranked, 4)
	assert.Equal(t, res.Selected, ranked[0].Index)
	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i-1].Mean.RMSE, ranked[i].Mean.RMSE)
	}

	pred, err := res.Final.Predict(data.XTest)
	require.NoError(t, err)
	assert.Equal(t, res.TestPredictions, mat.Col(nil, 0, pred))
	want, err := metrics.PostResample(data.YTest, pred)
	require.NoError(t, err)
	assert.Equal(t, want, res.Test)
	assert.Less(t, res.Test.RMSE, 1.0)
}

func TestTuneIsDeterministic(t *testing.T) {
	data := linearData(80, 2)
	grid := Grid{"k": IntValues(1, 3, 5, 7, 9)}
	rs := Resampling{Folds: 4, Repeats: 3, Seed: 11}

	seq, err := Tune(context.Background(), neighbors.NewKNNRegressor(), grid, rs, data, WithNJobs(1))
	require.NoError(t, err)
	par, err := Tune(context.Background(), neighbors.NewKNNRegressor(), grid, rs, data, WithNJobs(16))
	require.NoError(t, err)

	assert.Equal(t, seq.Rows, par.Rows)
	assert.Equal(t, seq.Selected, par.Selected)
	assert.Equal(t, seq.TestPredictions, par.TestPredictions)
}

func TestTuneExcludesFailedPoints(t *testing.T) {
	data := linearData(60, 3)
	grid := Grid{"k": IntValues(1000, 3)}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	res, err := Tune(context.Background(), neighbors.NewKNNRegressor(), grid,
		Resampling{Folds: 4, Repeats: 1, Seed: 1}, data, WithMetrics(m), WithNJobs(2))
	require.NoError(t, err)

	assert.True(t, res.Rows[0].Failed())
	assert.Equal(t, 1, res.Selected)
	assert.Len(t, res.Failures(), 1)
	assert.Len(t, res.Ranking(), 1)

	var ve *errors.ValidationError
	assert.True(t, errors.As(res.Rows[0].Err, &ve))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.fits.WithLabelValues("knn", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.fits.WithLabelValues("knn", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs))
}

func TestTunePLSAfterPCA(t *testing.T) {
	data := linearData(100, 5)
	est, err := pipeline.FromSpecs(pls.NewPLSRegression(), []pipeline.StepSpec{{Name: "pca", NComp: 3}})
	require.NoError(t, err)

	res, err := Tune(context.Background(), est, Grid{"ncomp": IntValues(1, 2, 3)},
		Resampling{Folds: 5, Repeats: 1, Seed: 3}, data)
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Empty(t, res.Failures())
	for _, row := range res.Rows[1:] {
		assert.InDelta(t, res.Rows[0].Mean.RMSE, row.Mean.RMSE, 1e-6)
	}
	assert.Less(t, res.Test.RMSE, 1.0)
}

func TestTuneAllPointsFail(t *testing.T) {
	data := linearData(40, 4)
	_, err := Tune(context.Background(), neighbors.NewKNNRegressor(), Grid{"k": IntValues(500, 600)},
		Resampling{Folds: 2, Repeats: 1, Seed: 1}, data)
	require.Error(t, err)

	var me *errors.ModelError
	require.True(t, errors.As(err, &me))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTuneRecoversPanics(t *testing.T) {
	data := linearData(40, 5)
	res, err := Tune(context.Background(), &panicky{Ridge: linear.NewRidge()}, Grid{"lambda": FloatValues(-1, 1)},
		Resampling{Folds: 2, Repeats: 1, Seed: 1}, data)
	require.NoError(t, err)
	var pe *errors.PanicError
	assert.True(t, errors.As(res.Rows[0].Err, &pe))
	assert.Equal(t, 1, res.Selected)
}

// panicky は負の lambda で Fit 中に panic する
type panicky struct{ *linear.Ridge }

func (p *panicky) Fit(X, y mat.Matrix) error {
	if p.GetParams(false)["lambda"].(float64) < 0 {
		panic("negative lambda")
	}
	return p.Ridge.Fit(X, y)
}

func (p *panicky) Clone() model.SKLearnCompatible {
	return &panicky{Ridge: p.Ridge.Clone().(*linear.Ridge)}
}

func TestTuneCancelled(t *testing.T) {
	data := linearData(60, 6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Tune(ctx, linear.NewRidge(), Grid{"lambda": FloatValues(0, 1)},
		Resampling{Folds: 3, Repeats: 1, Seed: 1}, data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTuneValidation(t *testing.T) {
	data := linearData(40, 7)
	rs := Resampling{Folds: 2, Repeats: 1, Seed: 1}

	_, err := Tune(context.Background(), nil, Grid{}, rs, data)
	assert.Error(t, err)

	_, err = Tune(context.Background(), linear.NewRidge(), Grid{}, rs, data, WithSelection("worst"))
	assert.Error(t, err)

	bad := data
	bad.YTest = nil
	_, err = Tune(context.Background(), linear.NewRidge(), Grid{}, rs, bad)
	assert.Error(t, err)

	noTest := Data{XTrain: data.XTrain, YTrain: data.YTrain}
	res, err := Tune(context.Background(), linear.NewRidge(), Grid{}, rs, noTest)
	require.NoError(t, err)
	assert.False(t, res.HasTest)
	assert.Empty(t, res.TestPredictions)
}

func TestTuneLogs(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	data := linearData(40, 8)
	_, err := Tune(context.Background(), linear.NewRidge(), Grid{"lambda": FloatValues(0, 1)},
		Resampling{Folds: 2, Repeats: 1, Seed: 1}, data, WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("tuning started"))
	assert.True(t, logger.ContainsMessage("tuning finished"))
	assert.Equal(t, 2, logger.CountMessages("grid point scored"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "ridge"))
	assert.True(t, logger.ContainsMessage("test_rmse"))
}

func TestTuneLogsWithoutTestPartition(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	data := linearData(40, 8)
	noTest := Data{XTrain: data.XTrain, YTrain: data.YTrain}
	_, err := Tune(context.Background(), linear.NewRidge(), Grid{"lambda": FloatValues(0, 1)},
		Resampling{Folds: 2, Repeats: 1, Seed: 1}, noTest, WithLogger(logger))
	require.NoError(t, err)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var finished map[string]interface{}
	for _, e := range entries {
		if e["message"] == "tuning finished" {
			finished = e
		}
	}
	require.NotNil(t, finished)
	assert.Contains(t, finished, log.RMSEKey)
	assert.NotContains(t, finished, "test_rmse")
}

func TestCrossValidate(t *testing.T) {
	data := linearData(60, 9)
	rs := Resampling{Folds: 5, Repeats: 2, Seed: 3}
	row, err := CrossValidate(context.Background(), linear.NewLinearRegression(), data.XTrain, data.YTrain, rs)
	require.NoError(t, err)
	assert.Len(t, row.Resamples, 10)
	assert.Greater(t, row.Mean.Rsquared, 0.5)
	assert.Greater(t, row.RMSESE(), 0.0)

	_, err = CrossValidate(context.Background(), neighbors.NewKNNRegressor(neighbors.WithK(100)), data.XTrain, data.YTrain, rs)
	assert.Error(t, err)
}

func TestSelection(t *testing.T) {
	row := func(i int, rmse, sd float64) CVRow {
		return CVRow{Index: i, Mean: metrics.Summary{RMSE: rmse}, SD: metrics.Summary{RMSE: sd},
			Resamples: make([]ResampleScore, 4)}
	}
	rows := []CVRow{
		row(0, 1.30, 0.2),
		row(1, 1.08, 0.2),
		row(2, 1.00, 0.2), // best, SE = 0.1
		row(3, 1.00, 0.2),
	}

	i, err := SelectBest.choose(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	i, err = SelectOneSE.choose(rows)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	rows[1].Err = errors.New("boom")
	i, err = SelectOneSE.choose(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	for _, s := range []string{"best", "oneSE", ""} {
		_, err := ParseSelection(s)
		assert.NoError(t, err)
	}
	_, err = ParseSelection("median")
	assert.Error(t, err)

	_, err = SelectBest.choose([]CVRow{{Err: errors.New("x")}})
	assert.Error(t, err)
}

func TestFromSplit(t *testing.T) {
	f, err := dataset.Friedman1(50, 1, 1)
	require.NoError(t, err)
	s, err := dataset.TrainTestSplit(f, 0.8, 1)
	require.NoError(t, err)
	d := FromSplit(s)
	assert.NoError(t, d.validate("test"))
	assert.NotNil(t, d.XTest)
}
