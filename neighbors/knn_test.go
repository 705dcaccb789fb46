package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

func TestKNNRegressorPredict(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{1, 2, 3, 10, 20, 30})

	tests := []struct {
		name  string
		k     int
		query []float64
		want  []float64
	}{
		{"k=1 exact", 1, []float64{0, 11}, []float64{1, 20}},
		{"k=3 clusters", 3, []float64{1, 11}, []float64{2, 20}},
		{"k=6 global mean", 6, []float64{5}, []float64{11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			knn := NewKNNRegressor(WithK(tt.k), WithNJobs(2))
			require.NoError(t, knn.Fit(X, y))
			pred, err := knn.Predict(mat.NewDense(len(tt.query), 1, tt.query))
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, mat.Col(nil, 0, pred), 1e-12)
		})
	}
}

func TestKNNNeighboursTieBreak(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-1, 1, -1, 1})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	knn := NewKNNRegressor(WithK(2))
	require.NoError(t, knn.Fit(X, y))

	idx, err := knn.Neighbours([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx)
}

func TestKNNParallelMatchesSequential(t *testing.T) {
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%17))
		X.Set(i, 1, float64(i%13))
		y.Set(i, 0, float64(i))
	}
	seq := NewKNNRegressor(WithK(4), WithNJobs(1))
	par := NewKNNRegressor(WithK(4), WithNJobs(8))
	require.NoError(t, seq.Fit(X, y))
	require.NoError(t, par.Fit(X, y))

	a, err := seq.Predict(X)
	require.NoError(t, err)
	b, err := par.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, mat.Col(nil, 0, a), mat.Col(nil, 0, b))
}

func TestKNNErrors(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	err := NewKNNRegressor(WithK(4)).Fit(X, y)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	err = NewKNNRegressor(WithK(0)).Fit(X, y)
	assert.True(t, errors.As(err, &ve))

	_, err = NewKNNRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	knn := NewKNNRegressor(WithK(1))
	require.NoError(t, knn.Fit(X, y))
	_, err = knn.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestKNNParams(t *testing.T) {
	knn := NewKNNRegressor()
	assert.Equal(t, DefaultK, knn.GetParams(false)["k"])
	require.NoError(t, knn.SetParams(map[string]interface{}{"k": 7}))
	assert.Equal(t, 7, knn.GetParams(false)["k"])
	assert.Error(t, knn.SetParams(map[string]interface{}{"k": 1.5}))
	assert.Error(t, knn.SetParams(map[string]interface{}{"lambda": 1.0}))

	c := knn.Clone()
	assert.Equal(t, knn.GetParams(false), c.GetParams(false))
	assert.Equal(t, "knn", knn.Name())

	var _ model.TunableRegressor = knn
}
