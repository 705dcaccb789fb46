package pipeline

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/linear"
	"github.com/YuminosukeSato/apmkit/neighbors"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pls"
	"github.com/YuminosukeSato/apmkit/preprocessing"
)

// x0 と x1 はほぼ同一、x2 は定数
func collinearData(n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(9, 9))
	X := mat.NewDense(n, 4, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		X.Set(i, 0, a)
		X.Set(i, 1, a+1e-3*rng.NormFloat64())
		X.Set(i, 2, 7)
		X.Set(i, 3, rng.NormFloat64())
		y.Set(i, 0, 3*a-X.At(i, 3)+0.1*rng.NormFloat64())
	}
	return X, y
}

func TestPipelineRescuesCollinearFit(t *testing.T) {
	X, y := collinearData(50)

	err := linear.NewLinearRegression().Fit(X, y)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))

	p, err := FromSpecs(linear.NewLinearRegression(), []StepSpec{{Name: "nzv"}, {Name: "corr", Cutoff: 0.9}})
	require.NoError(t, err)
	require.NoError(t, p.Fit(X, y))

	pred, err := p.Predict(X)
	require.NoError(t, err)
	r, c := pred.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 1, c)

	names, err := p.FeatureNames([]string{"a", "b", "const", "d"})
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Contains(t, names, "d")
	assert.NotContains(t, names, "const")

	score, err := p.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)
}

func TestPipelineParamsForwardToFinal(t *testing.T) {
	p := New(linear.NewRidge(), Step{Name: "center_scale", Transformer: preprocessing.NewStandardScalerDefault()})
	require.NoError(t, p.SetParams(map[string]interface{}{"lambda": 0.5}))
	assert.Equal(t, 0.5, p.GetParams(false)["lambda"])
	assert.Equal(t, 0.5, p.Final().GetParams(false)["lambda"])
	assert.Equal(t, "center_scale+ridge", p.Name())

	var _ model.TunableRegressor = p
}

func TestPipelineCloneIsUnfitted(t *testing.T) {
	X, y := collinearData(40)
	p, err := FromSpecs(neighbors.NewKNNRegressor(neighbors.WithK(3)),
		[]StepSpec{{Name: "nzv"}, {Name: "center_scale"}})
	require.NoError(t, err)
	require.NoError(t, p.Fit(X, y))

	c := p.Clone().(*Pipeline)
	assert.Equal(t, p.GetParams(true), c.GetParams(true))
	assert.Equal(t, p.Name(), c.Name())

	_, err = c.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	// 複製を学習しても元のパイプラインには影響しない
	require.NoError(t, c.SetParams(map[string]interface{}{"k": 1}))
	require.NoError(t, c.Fit(X, y))
	assert.Equal(t, 3, p.GetParams(false)["k"])
	for i, s := range c.Steps() {
		assert.NotSame(t, p.Steps()[i].Transformer, s.Transformer)
	}
}

func TestPipelinePCAFeatureNamesAndImportance(t *testing.T) {
	X, y := collinearData(60)
	p, err := FromSpecs(pls.NewPLSRegression(pls.WithNComp(2)),
		[]StepSpec{{Name: "nzv"}, {Name: "pca", NComp: 2}})
	require.NoError(t, err)
	require.NoError(t, p.Fit(X, y))

	names, err := p.FeatureNames([]string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PC1", "PC2"}, names)

	imp, err := p.FeatureImportances()
	require.NoError(t, err)
	assert.Len(t, imp, 2)

	knn := New(neighbors.NewKNNRegressor())
	require.NoError(t, knn.Fit(X, y))
	_, err = knn.FeatureImportances()
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))
}

func TestNewTransformer(t *testing.T) {
	for _, name := range StepNames() {
		tr, err := NewTransformer(StepSpec{Name: name})
		require.NoError(t, err, name)
		assert.NotNil(t, tr.Clone())
	}

	_, err := NewTransformer(StepSpec{Name: "yeojohnson"})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	tr, err := NewTransformer(StepSpec{Name: "corr"})
	require.NoError(t, err)
	assert.Equal(t, preprocessing.DefaultCorrelationCutoff, tr.(*preprocessing.CorrelationFilter).Cutoff)
}

func TestPipelineStepErrorIsWrapped(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 1, 1})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})
	p := New(linear.NewLinearRegression(), Step{Name: "nzv", Transformer: preprocessing.NewNearZeroVar()})
	err := p.Fit(X, y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pipeline step "nzv"`)
}
