// Package pls implements partial least squares regression for a single
// response (PLS1) with the NIPALS algorithm.
package pls

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PLSRegression extracts NComp latent components that maximize the
// covariance between the predictors and the response, then regresses the
// response on them. Predictors are always centered and, with Scale, divided
// by their standard deviation. Coefficients are reported on the original
// predictor scale.
type PLSRegression struct {
	state *model.StateManager

	ncomp int
	scale bool

	coef      []float64
	intercept float64

	xMean, xScale []float64
	// W, P は p×A の重みと負荷量、T は n×A の得点
	weights, loadings, scores *mat.Dense
	// q は各成分の y 負荷量
	q []float64
}

// Option configures a PLSRegression.
type Option func(*PLSRegression)

// WithNComp sets the number of components.
func WithNComp(n int) Option {
	return func(p *PLSRegression) { p.ncomp = n }
}

// WithScale sets whether predictors are scaled to unit variance.
func WithScale(scale bool) Option {
	return func(p *PLSRegression) { p.scale = scale }
}

// NewPLSRegression は PLS 回帰を作成する（デフォルト ncomp = 1, scale = true）
func NewPLSRegression(opts ...Option) *PLSRegression {
	p := &PLSRegression{
		state: model.NewStateManager("PLSRegression"),
		ncomp: 1,
		scale: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit は NIPALS で成分を抽出して係数を求める
func (p *PLSRegression) Fit(X, y mat.Matrix) (err error) {
	const op = "PLSRegression.Fit"
	defer errors.Recover(&err, op)

	n, d, yv, err := checkXY(op, X, y)
	if err != nil {
		return err
	}
	if p.ncomp < 1 || p.ncomp > d || p.ncomp > n-1 {
		return errors.NewValidationError("ncomp", fmt.Sprintf("must be in [1, %d]", min(d, n-1)), p.ncomp)
	}

	// 中心化（とスケーリング）
	E := mat.NewDense(n, d, nil)
	p.xMean = make([]float64, d)
	p.xScale = make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		mean, sd := stat.MeanStdDev(col, nil)
		if !p.scale || sd < 1e-12 {
			sd = 1
		}
		p.xMean[j], p.xScale[j] = mean, sd
		for i, v := range col {
			E.Set(i, j, (v-mean)/sd)
		}
	}
	yMean := stat.Mean(yv, nil)
	f := mat.NewVecDense(n, nil)
	for i, v := range yv {
		f.SetVec(i, v-yMean)
	}

	A := p.ncomp
	W := mat.NewDense(d, A, nil)
	P := mat.NewDense(d, A, nil)
	T := mat.NewDense(n, A, nil)
	q := make([]float64, A)

	w := mat.NewVecDense(d, nil)
	t := mat.NewVecDense(n, nil)
	pl := mat.NewVecDense(d, nil)
	var firstNorm float64
	extracted := A
	for a := 0; a < A; a++ {
		w.MulVec(E.T(), f)
		norm := mat.Norm(w, 2)
		if a == 0 {
			if norm < 1e-12 {
				return errors.NewModelError(op, "no covariance between predictors and response", errors.ErrSingularMatrix)
			}
			firstNorm = norm
		} else if norm < 1e-10*firstNorm {
			// 残差 y が予測子と無相関になったので、ここまでの成分で打ち切る
			extracted = a
			errors.Warn(errors.NewConvergenceWarning(op, a,
				fmt.Sprintf("y residual is orthogonal to the predictors after %d of %d components", a, A)))
			break
		}
		w.ScaleVec(1/norm, w)

		t.MulVec(E, w)
		tt := mat.Dot(t, t)
		if tt < 1e-12 {
			return errors.NewModelError(op, fmt.Sprintf("component %d has zero variance", a+1), errors.ErrSingularMatrix)
		}
		pl.MulVec(E.T(), t)
		pl.ScaleVec(1/tt, pl)
		q[a] = mat.Dot(f, t) / tt

		// デフレーション
		var outer mat.Dense
		outer.Outer(1, t, pl)
		E.Sub(E, &outer)
		f.AddScaledVec(f, -q[a], t)

		W.SetCol(a, w.RawVector().Data)
		P.SetCol(a, pl.RawVector().Data)
		T.SetCol(a, t.RawVector().Data)
	}

	if extracted < A {
		A = extracted
		W = mat.DenseCopyOf(W.Slice(0, d, 0, A))
		P = mat.DenseCopyOf(P.Slice(0, d, 0, A))
		T = mat.DenseCopyOf(T.Slice(0, n, 0, A))
		q = q[:A]
	}

	// B = W (P'W)^{-1} q
	var PtW mat.Dense
	PtW.Mul(P.T(), W)
	var inv mat.Dense
	if err := inv.Inverse(&PtW); err != nil {
		return errors.NewModelError(op, "P'W is singular", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}
	var R mat.Dense
	R.Mul(W, &inv)
	B := mat.NewVecDense(d, nil)
	B.MulVec(&R, mat.NewVecDense(A, q))

	p.coef = make([]float64, d)
	p.intercept = yMean
	for j := 0; j < d; j++ {
		p.coef[j] = B.AtVec(j) / p.xScale[j]
		p.intercept -= p.coef[j] * p.xMean[j]
	}
	p.weights, p.loadings, p.scores, p.q = W, P, T, q

	p.state.SetFitted(d, n)
	return nil
}

// Predict は入力データに対する予測を n×1 行列で返す
func (p *PLSRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	const op = "PLSRegression.Predict"
	if err := p.state.RequireFitted("Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := p.state.CheckFeatures(op, cols); err != nil {
		return nil, err
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		v := p.intercept
		for j := 0; j < cols; j++ {
			v += X.At(i, j) * p.coef[j]
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// Score は決定係数（1 - RSS/TSS）を返す
func (p *PLSRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector("PLSRegression.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector("PLSRegression.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

// VIP returns the variable importance in projection of every predictor:
//
//	VIP_j = sqrt(p · Σ_a SSY_a w_ja² / Σ_a SSY_a),  SSY_a = q_a² t_a't_a
//
// The mean of the squared VIP scores is one, so predictors with VIP > 1 are
// conventionally called important.
func (p *PLSRegression) VIP() ([]float64, error) {
	if err := p.state.RequireFitted("VIP"); err != nil {
		return nil, err
	}
	d, A := p.weights.Dims()
	ssy := make([]float64, A)
	var total float64
	for a := 0; a < A; a++ {
		t := p.scores.ColView(a)
		ssy[a] = p.q[a] * p.q[a] * mat.Dot(t, t)
		total += ssy[a]
	}
	vip := make([]float64, d)
	if total == 0 {
		return vip, nil
	}
	for j := 0; j < d; j++ {
		var s float64
		for a := 0; a < A; a++ {
			w := p.weights.At(j, a)
			s += ssy[a] * w * w
		}
		vip[j] = math.Sqrt(float64(d) * s / total)
	}
	return vip, nil
}

// FeatureImportances returns the VIP scores.
func (p *PLSRegression) FeatureImportances() ([]float64, error) {
	return p.VIP()
}

// Scores は学習データの n×A 得点行列を返す
func (p *PLSRegression) Scores() *mat.Dense {
	if p.scores == nil {
		return nil
	}
	return mat.DenseCopyOf(p.scores)
}

// XWeights は p×A の重み行列を返す
func (p *PLSRegression) XWeights() *mat.Dense {
	if p.weights == nil {
		return nil
	}
	return mat.DenseCopyOf(p.weights)
}

// XLoadings は p×A の負荷量行列を返す
func (p *PLSRegression) XLoadings() *mat.Dense {
	if p.loadings == nil {
		return nil
	}
	return mat.DenseCopyOf(p.loadings)
}

// Coef は元のスケールでの係数を返す
func (p *PLSRegression) Coef() []float64 {
	if p.coef == nil {
		return nil
	}
	return append([]float64(nil), p.coef...)
}

// Intercept は切片を返す
func (p *PLSRegression) Intercept() float64 { return p.intercept }

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (p *PLSRegression) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{"ncomp": p.ncomp, "scale": p.scale}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (p *PLSRegression) SetParams(params map[string]interface{}) error {
	if err := model.CheckKnownParams("PLSRegression", params, "ncomp", "scale"); err != nil {
		return err
	}
	if v, ok, err := model.IntParam(params, "ncomp"); err != nil {
		return err
	} else if ok {
		p.ncomp = v
	}
	if v, ok, err := model.BoolParam(params, "scale"); err != nil {
		return err
	} else if ok {
		p.scale = v
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (p *PLSRegression) Clone() model.SKLearnCompatible {
	return NewPLSRegression(WithNComp(p.ncomp), WithScale(p.scale))
}

// ExportWeights は元スケールの係数をエクスポートする
func (p *PLSRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := p.state.RequireFitted("ExportWeights"); err != nil {
		return nil, err
	}
	w := model.NewModelWeights("PLSRegression", p.coef, p.intercept, p.GetParams(false))
	if vip, err := p.VIP(); err == nil {
		w.Metadata["vip"] = vip
	}
	return w, nil
}

// ImportWeights は係数だけを読み込む（得点や負荷量は復元されない）
func (p *PLSRegression) ImportWeights(w *model.ModelWeights) error {
	if w == nil || w.ModelType != "PLSRegression" {
		return errors.NewValueError("PLSRegression.ImportWeights", "weights are not a PLSRegression export")
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "PLSRegression.ImportWeights")
	}
	if err := p.SetParams(w.Hyperparameters); err != nil {
		return err
	}
	p.coef = append([]float64(nil), w.Coefficients...)
	p.intercept = w.Intercept
	p.weights, p.loadings, p.scores, p.q = nil, nil, nil, nil
	p.state.SetFitted(len(p.coef), 0)
	return nil
}

// Name returns the registry name of the model.
func (p *PLSRegression) Name() string { return "pls" }

func (p *PLSRegression) String() string {
	return fmt.Sprintf("PLSRegression(ncomp=%d, scale=%t)", p.ncomp, p.scale)
}

func checkXY(op string, X, y mat.Matrix) (int, int, []float64, error) {
	if X == nil || y == nil {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	n, d := X.Dims()
	yn, yc := y.Dims()
	if n == 0 || d == 0 {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if yn != n {
		return 0, 0, nil, errors.NewDimensionError(op, n, yn, 0)
	}
	if yc != 1 {
		return 0, 0, nil, errors.NewDimensionError(op, 1, yc, 1)
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return 0, 0, nil, err
	}
	if err := errors.CheckFinite(op, y); err != nil {
		return 0, 0, nil, err
	}
	yv := make([]float64, n)
	for i := range yv {
		yv[i] = y.At(i, 0)
	}
	return n, d, yv, nil
}

var (
	_ model.TunableRegressor = (*PLSRegression)(nil)
	_ model.LinearModel      = (*PLSRegression)(nil)
	_ model.Importancer      = (*PLSRegression)(nil)
)
