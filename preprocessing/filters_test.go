package preprocessing

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

// correlatedData builds columns a, a+small noise, b, -a + noise, c.
func correlatedData(n int, seed uint64) *mat.Dense {
	r := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 5, nil)
	for i := 0; i < n; i++ {
		a := r.NormFloat64()
		X.Set(i, 0, a)
		X.Set(i, 1, a+0.05*r.NormFloat64())
		X.Set(i, 2, r.NormFloat64())
		X.Set(i, 3, -a+0.1*r.NormFloat64())
		X.Set(i, 4, r.NormFloat64())
	}
	return X
}

func TestCorrelationFilter(t *testing.T) {
	X := correlatedData(200, 1)
	f := NewCorrelationFilter(0.75)
	out, err := f.FitTransform(X)
	require.NoError(t, err)

	_, c := out.Dims()
	// one of the three collinear columns survives
	assert.Equal(t, 3, c)
	assert.Len(t, f.Dropped(), 2)
	assert.Contains(t, f.Retained(), 2)
	assert.Contains(t, f.Retained(), 4)

	var sel model.FeatureSelector = f
	assert.Len(t, sel.Retained(), 3)
}

func TestCorrelationFilterProperties(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		X := correlatedData(60, seed)
		abs := AbsCorrelation(X)
		for _, cutoff := range []float64{0.5, 0.8, 0.95, 0.999} {
			dropped := FindCorrelation(abs, cutoff)
			_, p := X.Dims()
			assert.LessOrEqual(t, p-len(dropped), p)

			// every dropped column exceeded the cutoff against a column still
			// active when it was dropped
			active := map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}
			for _, d := range dropped {
				exceeded := false
				for j := range active {
					if j != d && abs.At(d, j) > cutoff {
						exceeded = true
					}
				}
				assert.True(t, exceeded, "column %d dropped without exceeding %g", d, cutoff)
				delete(active, d)
			}
			// remaining pairs are all within the cutoff
			for i := range active {
				for j := range active {
					if i != j {
						assert.LessOrEqual(t, abs.At(i, j), cutoff)
					}
				}
			}
		}
	}
}

func TestCorrelationFilterKeepsUncorrelated(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 1, 2, -1, 3, 1, 4, -1})
	f := NewCorrelationFilter(0.9)
	require.NoError(t, f.Fit(X))
	assert.Equal(t, []int{0, 1}, f.Retained())
}

func TestNearZeroVar(t *testing.T) {
	n := 100
	X := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 7) // zero variance
		if i < 2 {
			X.Set(i, 1, 1) // 98:2 → freq ratio 49, 2% unique
		}
		X.Set(i, 2, float64(i%10))
	}

	metrics := NearZeroVarMetrics(X, DefaultFreqCut, DefaultUniqueCut)
	assert.True(t, metrics[0].ZeroVar)
	assert.InDelta(t, 49.0, metrics[1].FreqRatio, 1e-12)
	assert.InDelta(t, 2.0, metrics[1].PercentUnique, 1e-12)
	assert.True(t, metrics[1].NZV)
	assert.False(t, metrics[2].NZV)

	nzv := NewNearZeroVar()
	out, err := nzv.FitTransform(X)
	require.NoError(t, err)
	_, c := out.Dims()
	assert.Equal(t, 1, c)
	assert.Equal(t, []int{2}, nzv.Retained())

	allConstant := mat.NewDense(3, 1, []float64{1, 1, 1})
	assert.Error(t, NewNearZeroVar().Fit(allConstant))
}

func TestBoxCox(t *testing.T) {
	// log-normal data should pick λ = 0 (log)
	r := rand.New(rand.NewPCG(3, 3))
	n := 500
	X := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, math.Exp(r.NormFloat64()))
		X.Set(i, 1, r.NormFloat64()) // contains negatives
		X.Set(i, 2, 10+r.NormFloat64())
	}

	b := NewBoxCox()
	out, err := b.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.Lambdas[0])
	assert.True(t, math.IsNaN(b.Lambdas[1]))
	assert.InDelta(t, math.Log(X.At(0, 0)), out.At(0, 0), 1e-12)
	assert.Equal(t, X.At(0, 1), out.At(0, 1))

	for _, lambda := range []float64{0, 0.5, -1} {
		v := 3.7
		back, err := BoxCoxInverse(boxCoxValue(v, lambda), lambda)
		require.NoError(t, err)
		assert.InDelta(t, v, back, 1e-9)
	}
}

func TestEstimateBoxCoxLambdaEdgeCases(t *testing.T) {
	assert.True(t, math.IsNaN(EstimateBoxCoxLambda([]float64{1, 1, 2})))
	assert.True(t, math.IsNaN(EstimateBoxCoxLambda([]float64{0, 1, 2, 3})))
	assert.True(t, math.IsNaN(EstimateBoxCoxLambda(nil)))
}

func TestPCA(t *testing.T) {
	X := correlatedData(100, 9)

	p := NewPCA()
	scores, err := p.FitTransform(X)
	require.NoError(t, err)
	r, k := scores.Dims()
	assert.Equal(t, 100, r)
	assert.Equal(t, p.NComponents(), k)
	assert.GreaterOrEqual(t, k, 2)
	assert.Less(t, k, 5)

	var cum float64
	for _, v := range p.ExplainedVarianceRatio[:k] {
		cum += v
	}
	assert.GreaterOrEqual(t, cum, DefaultPCAThreshold-1e-9)
	assert.Equal(t, "PC1", p.Names()[0])

	fixed := NewPCA(WithPCAComponents(3))
	scores, err = fixed.FitTransform(X)
	require.NoError(t, err)
	_, k = scores.Dims()
	assert.Equal(t, 3, k)

	X.Set(0, 0, math.NaN())
	err = NewPCA().Fit(X)
	assert.True(t, errors.Is(err, errors.ErrMissingValues))
}

func TestComponentsForThreshold(t *testing.T) {
	assert.Equal(t, 2, ComponentsForThreshold([]float64{0.6, 0.3, 0.1}, 0.9))
	assert.Equal(t, 3, ComponentsForThreshold([]float64{0.6, 0.3, 0.1}, 0.95))
}

func TestImputers(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 10,
		2, 20,
		math.NaN(), 30,
		4, 40,
		100, math.NaN(),
	})

	med := NewMedianImputer()
	out, err := med.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, out.At(2, 0), 1e-12)
	assert.InDelta(t, 25.0, out.At(4, 1), 1e-12)

	knn := NewKNNImputer(1)
	out, err = knn.FitTransform(X)
	require.NoError(t, err)
	// row 2 (x2 = 30) is nearest to the complete row with x2 = 40 or 20; both
	// are equidistant, the first in order wins
	v := out.At(2, 0)
	assert.True(t, math.Abs(v-2) < 1e-9 || math.Abs(v-4) < 1e-9, "imputed %v", v)
	assert.InDelta(t, 1.0, out.At(0, 0), 1e-9)
	assert.False(t, hasMissing(out))

	empty := mat.NewDense(2, 1, []float64{math.NaN(), math.NaN()})
	assert.Error(t, NewMedianImputer().Fit(empty))
}

func TestSpatialSign(t *testing.T) {
	X := correlatedData(30, 4)
	s := NewSpatialSign()
	out, err := s.FitTransform(X)
	require.NoError(t, err)
	r, c := out.Dims()
	for i := 0; i < r; i++ {
		var ss float64
		for j := 0; j < c; j++ {
			ss += out.At(i, j) * out.At(i, j)
		}
		assert.InDelta(t, 1.0, ss, 1e-9)
	}
}

func TestTransformersCloneUnfitted(t *testing.T) {
	X := correlatedData(40, 2)
	transformers := []model.CloneableTransformer{
		NewStandardScalerDefault(), NewMinMaxScalerDefault(), NewBoxCox(), NewPCA(),
		NewCorrelationFilter(0.9), NewNearZeroVar(), NewMedianImputer(), NewKNNImputer(3), NewSpatialSign(),
	}
	for _, tr := range transformers {
		require.NoError(t, tr.Fit(X))
		clone := tr.Clone()
		_, err := clone.Transform(X)
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf), "%T clone should be unfitted", tr)
	}
}

func TestFailedRefitLeavesTransformerUnfitted(t *testing.T) {
	X := correlatedData(40, 5)
	constant := mat.NewDense(3, 2, []float64{1, 2, 1, 2, 1, 2})
	noObserved := mat.NewDense(2, 1, []float64{math.NaN(), math.NaN()})
	withNaN := mat.DenseCopyOf(X)
	withNaN.Set(0, 0, math.NaN())

	tests := []struct {
		name string
		tr   model.CloneableTransformer
		bad  mat.Matrix
	}{
		{"nzv all constant", NewNearZeroVar(), constant},
		{"corr no data", NewCorrelationFilter(0.9), nil},
		{"median no observed values", NewMedianImputer(), noObserved},
		{"knn no complete rows", NewKNNImputer(3), noObserved},
		{"pca missing values", NewPCA(), withNaN},
		{"spatial sign missing values", NewSpatialSign(), withNaN},
		{"standard scaler no data", NewStandardScalerDefault(), nil},
		{"minmax no data", NewMinMaxScalerDefault(), nil},
		{"boxcox no data", NewBoxCox(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.tr.Fit(X))
			require.Error(t, tt.tr.Fit(tt.bad))

			assert.NotPanics(t, func() {
				_, err := tt.tr.Transform(X)
				var nf *errors.NotFittedError
				assert.True(t, errors.As(err, &nf), "got %v", err)
			})

			// 再学習すれば元どおり使える
			require.NoError(t, tt.tr.Fit(X))
			_, err := tt.tr.Transform(X)
			assert.NoError(t, err)
		})
	}
}

func TestKNNImputerLargeInputMatchesRowByRow(t *testing.T) {
	X := correlatedData(400, 6)
	r := rand.New(rand.NewPCG(6, 6))
	for i := 0; i < 400; i += 3 {
		X.Set(i, r.IntN(5), math.NaN())
	}

	knn := NewKNNImputer(4)
	out, err := knn.FitTransform(X)
	require.NoError(t, err)
	assert.False(t, hasMissing(out))

	for _, i := range []int{0, 3, 201, 399} {
		one, err := knn.Transform(X.Slice(i, i+1, 0, 5))
		require.NoError(t, err)
		assert.InDeltaSlice(t, mat.Row(nil, i, out), mat.Row(nil, 0, one), 1e-12, "row %d", i)
	}
}
