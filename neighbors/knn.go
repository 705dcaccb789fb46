// Package neighbors implements k-nearest-neighbour regression.
package neighbors

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/core/parallel"
	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultK is the neighbourhood size used when none is given.
const DefaultK = 5

// これ以下の行数の予測はゴルーチンを使わない
const minParallelRows = 64

// KNNRegressor predicts the mean response of the K training samples closest
// to the query in Euclidean distance. Predictors should be centered and
// scaled beforehand; distances are computed on the raw input.
type KNNRegressor struct {
	state *model.StateManager

	k      int
	nJobs  int
	xTrain *mat.Dense
	yTrain []float64
}

// Option configures a KNNRegressor.
type Option func(*KNNRegressor)

// WithK は近傍数を設定する
func WithK(k int) Option {
	return func(r *KNNRegressor) { r.k = k }
}

// WithNJobs は予測時のワーカー数を設定する（0 以下で CPU 数）
func WithNJobs(n int) Option {
	return func(r *KNNRegressor) { r.nJobs = n }
}

// NewKNNRegressor は k 近傍回帰を作成する
func NewKNNRegressor(opts ...Option) *KNNRegressor {
	r := &KNNRegressor{state: model.NewStateManager("KNNRegressor"), k: DefaultK}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit は学習データを保持する
func (r *KNNRegressor) Fit(X, y mat.Matrix) error {
	const op = "KNNRegressor.Fit"
	if X == nil || y == nil {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yv, err := metrics.ColumnVector(op, y)
	if err != nil {
		return err
	}
	if yv.Len() != n {
		return errors.NewDimensionError(op, n, yv.Len(), 0)
	}
	if r.k < 1 {
		return errors.NewValidationError("k", "must be positive", r.k)
	}
	if r.k > n {
		return errors.NewValidationError("k", fmt.Sprintf("must not exceed the %d training samples", n), r.k)
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return err
	}
	if err := errors.CheckFinite(op, yv); err != nil {
		return err
	}

	r.xTrain = mat.DenseCopyOf(X)
	r.yTrain = make([]float64, n)
	for i := range r.yTrain {
		r.yTrain[i] = yv.AtVec(i)
	}
	r.state.SetFitted(d, n)
	return nil
}

// Predict は各行について近傍 k 点の応答の平均を返す
func (r *KNNRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	const op = "KNNRegressor.Predict"
	if err := r.state.RequireFitted("Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := r.state.CheckFeatures(op, cols); err != nil {
		return nil, err
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, minParallelRows, r.nJobs, func(start, end int) {
		query := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(query, i, X)
			idx := r.neighbours(query)
			var sum float64
			for _, j := range idx {
				sum += r.yTrain[j]
			}
			out.Set(i, 0, sum/float64(len(idx)))
		}
	})
	return out, nil
}

// Neighbours returns the training row indices of the K nearest samples to
// query, closest first. Ties are broken by the lower index.
func (r *KNNRegressor) Neighbours(query []float64) ([]int, error) {
	if err := r.state.RequireFitted("Neighbours"); err != nil {
		return nil, err
	}
	if err := r.state.CheckFeatures("KNNRegressor.Neighbours", len(query)); err != nil {
		return nil, err
	}
	return r.neighbours(query), nil
}

func (r *KNNRegressor) neighbours(query []float64) []int {
	n := len(r.yTrain)
	dist := make([]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = floats.Distance(r.xTrain.RawRowView(i), query, 2)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
	return idx[:r.k]
}

// Score は決定係数（1 - RSS/TSS）を返す
func (r *KNNRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector("KNNRegressor.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector("KNNRegressor.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (r *KNNRegressor) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{"k": r.k}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (r *KNNRegressor) SetParams(params map[string]interface{}) error {
	if err := model.CheckKnownParams("KNNRegressor", params, "k"); err != nil {
		return err
	}
	if v, ok, err := model.IntParam(params, "k"); err != nil {
		return err
	} else if ok {
		r.k = v
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (r *KNNRegressor) Clone() model.SKLearnCompatible {
	return NewKNNRegressor(WithK(r.k), WithNJobs(r.nJobs))
}

// Name returns the registry name of the model.
func (r *KNNRegressor) Name() string { return "knn" }

func (r *KNNRegressor) String() string {
	return fmt.Sprintf("KNNRegressor(k=%d)", r.k)
}

var (
	_ model.TunableRegressor = (*KNNRegressor)(nil)
	_ model.Regressor        = (*KNNRegressor)(nil)
)
