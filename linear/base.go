// Package linear はガウス線形モデル系の回帰推定器（最小二乗、Huber の
// ロバスト回帰、リッジ、エラスティックネット／lasso、主成分回帰）を提供する
//
// 推定器はすべて元の予測変数のスケールで係数と切片を持ち、
// model.ModelWeights として書き出せる。
package linear

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// linearFit holds the learned parameters every estimator of the package ends
// up with: y ≈ intercept + Σ coef_j x_j.
type linearFit struct {
	name  string
	state *model.StateManager

	coef      []float64
	intercept float64
	// xScale は学習データの各列の標準偏差（重要度の計算に使う）
	xScale []float64
}

func newLinearFit(name string) linearFit {
	return linearFit{name: name, state: model.NewStateManager(name)}
}

func (f *linearFit) setFit(coef []float64, intercept float64, X mat.Matrix) {
	r, c := X.Dims()
	f.coef = coef
	f.intercept = intercept
	f.xScale = make([]float64, c)
	for j := 0; j < c; j++ {
		f.xScale[j] = math.Sqrt(stat.Variance(columnOf(X, j), nil))
	}
	f.state.SetFitted(c, r)
}

// Predict は入力データに対する予測を n×1 行列で返す
func (f *linearFit) Predict(X mat.Matrix) (mat.Matrix, error) {
	op := f.name + ".Predict"
	if err := f.state.RequireFitted("Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := f.state.CheckFeatures(op, cols); err != nil {
		return nil, err
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := f.intercept
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * f.coef[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Score はテストデータに対する決定係数（1 - RSS/TSS）を返す
func (f *linearFit) Score(X, y mat.Matrix) (float64, error) {
	return scoreR2(f, X, y)
}

// Coef は学習された重み係数を返す
func (f *linearFit) Coef() []float64 {
	if f.coef == nil {
		return nil
	}
	return append([]float64(nil), f.coef...)
}

// Intercept は学習された切片を返す
func (f *linearFit) Intercept() float64 {
	return f.intercept
}

// IsFitted returns whether the model has been fitted
func (f *linearFit) IsFitted() bool {
	return f.state.IsFitted()
}

// FeatureImportances returns |coef_j|·sd(x_j), the absolute coefficient on
// standardized predictors.
func (f *linearFit) FeatureImportances() ([]float64, error) {
	if err := f.state.RequireFitted("FeatureImportances"); err != nil {
		return nil, err
	}
	imp := make([]float64, len(f.coef))
	for j, b := range f.coef {
		imp[j] = math.Abs(b) * f.xScale[j]
	}
	return imp, nil
}

func (f *linearFit) exportWeights(hyper map[string]interface{}) (*model.ModelWeights, error) {
	if err := f.state.RequireFitted("ExportWeights"); err != nil {
		return nil, err
	}
	w := model.NewModelWeights(f.name, f.coef, f.intercept, hyper)
	nFeatures, nSamples := f.state.GetDimensions()
	w.Metadata["n_features"] = nFeatures
	w.Metadata["n_samples"] = nSamples
	w.Metadata["x_scale"] = append([]float64(nil), f.xScale...)
	return w, nil
}

func (f *linearFit) importWeights(w *model.ModelWeights, setParams func(map[string]interface{}) error) error {
	if w == nil {
		return errors.NewValueError(f.name+".ImportWeights", "weights cannot be nil")
	}
	if w.ModelType != f.name {
		return errors.NewValueError(f.name+".ImportWeights",
			fmt.Sprintf("model type mismatch: expected %s, got %s", f.name, w.ModelType))
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, f.name+".ImportWeights")
	}
	if err := setParams(w.Hyperparameters); err != nil {
		return err
	}

	f.coef = append([]float64(nil), w.Coefficients...)
	f.intercept = w.Intercept
	f.xScale = make([]float64, len(f.coef))
	if raw, ok := w.Metadata["x_scale"].([]interface{}); ok && len(raw) == len(f.coef) {
		for j, v := range raw {
			f.xScale[j], _ = v.(float64)
		}
	} else if raw, ok := w.Metadata["x_scale"].([]float64); ok && len(raw) == len(f.coef) {
		copy(f.xScale, raw)
	}
	nSamples := 0
	switch v := w.Metadata["n_samples"].(type) {
	case float64:
		nSamples = int(v)
	case int:
		nSamples = v
	}
	f.state.SetFitted(len(f.coef), nSamples)
	return nil
}

// checkXY validates a training pair and returns y as a slice.
func checkXY(op string, X, y mat.Matrix) (int, int, []float64, error) {
	if X == nil || y == nil {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return 0, 0, nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return 0, 0, nil, err
	}
	if err := errors.CheckFinite(op, y); err != nil {
		return 0, 0, nil, err
	}
	yv := make([]float64, rows)
	for i := range yv {
		yv[i] = y.At(i, 0)
	}
	return rows, cols, yv, nil
}

func scoreR2(p model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector("Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

func columnOf(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = X.At(i, j)
	}
	return out
}

// standardized centers every column of X and divides it by its population
// standard deviation (Σz²/n = 1). Constant columns get scale 1 and end up all
// zero.
func standardized(X mat.Matrix) (*mat.Dense, []float64, []float64) {
	r, c := X.Dims()
	Z := mat.NewDense(r, c, nil)
	means := make([]float64, c)
	scales := make([]float64, c)
	for j := 0; j < c; j++ {
		col := columnOf(X, j)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std < 1e-12 {
			std = 1
		}
		means[j], scales[j] = mean, std
		for i, v := range col {
			Z.Set(i, j, (v-mean)/std)
		}
	}
	return Z, means, scales
}

// unstandardize maps coefficients on standardized predictors back to the
// original scale.
func unstandardize(beta, means, scales []float64, yMean float64) ([]float64, float64) {
	coef := make([]float64, len(beta))
	intercept := yMean
	for j, b := range beta {
		coef[j] = b / scales[j]
		intercept -= coef[j] * means[j]
	}
	return coef, intercept
}

// withInterceptColumn returns [1 | X].
func withInterceptColumn(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, 1.0)
		for j := 0; j < cols; j++ {
			out.Set(i, j+1, X.At(i, j))
		}
	}
	return out
}

// solveLeastSquares solves min ||A b - y|| by QR and reports a rank-deficient
// A as ErrSingularMatrix.
func solveLeastSquares(op string, A *mat.Dense, y []float64) ([]float64, error) {
	rows, cols := A.Dims()
	if rows < cols {
		return nil, errors.NewModelError(op,
			fmt.Sprintf("%d samples cannot determine %d coefficients", rows, cols), errors.ErrSingularMatrix)
	}

	var qr mat.QR
	qr.Factorize(A)

	var R mat.Dense
	qr.RTo(&R)
	maxDiag := 0.0
	for j := 0; j < cols; j++ {
		maxDiag = math.Max(maxDiag, math.Abs(R.At(j, j)))
	}
	tol := maxDiag * float64(max(rows, cols)) * 1e-12
	for j := 0; j < cols; j++ {
		if math.Abs(R.At(j, j)) <= tol {
			return nil, errors.NewModelError(op,
				fmt.Sprintf("design matrix is rank deficient (column %d)", j), errors.ErrSingularMatrix)
		}
	}

	b := mat.NewDense(cols, 1, nil)
	if err := qr.SolveTo(b, false, mat.NewVecDense(rows, append([]float64(nil), y...))); err != nil {
		return nil, errors.NewModelError(op, "failed to solve linear system", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}
	out := make([]float64, cols)
	for j := range out {
		out[j] = b.At(j, 0)
	}
	return out, nil
}

var (
	_ model.LinearModel      = (*LinearRegression)(nil)
	_ model.LinearModel      = (*RobustRegression)(nil)
	_ model.LinearModel      = (*Ridge)(nil)
	_ model.LinearModel      = (*ElasticNet)(nil)
	_ model.LinearModel      = (*PCR)(nil)
	_ model.TunableRegressor = (*LinearRegression)(nil)
	_ model.TunableRegressor = (*RobustRegression)(nil)
	_ model.TunableRegressor = (*Ridge)(nil)
	_ model.TunableRegressor = (*ElasticNet)(nil)
	_ model.TunableRegressor = (*PCR)(nil)
	_ model.WeightExporter   = (*Ridge)(nil)
)
