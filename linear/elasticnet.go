package linear

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Defaults of the coordinate descent solver.
const (
	DefaultENetMaxIter = 10000
	DefaultENetTol     = 1e-7
)

// ElasticNet minimizes
//
//	(1/2n)·||y - ȳ - Zβ||² + λ·[(1-α)/2·||β||² + α·||β||₁]
//
// by cyclic coordinate descent on standardized predictors Z. Alpha = 1 is
// the lasso and alpha = 0 is ridge regression.
//
// When the largest coefficient change is still above Tol after MaxIter
// sweeps a ConvergenceWarning is raised and the last iterate is kept.
type ElasticNet struct {
	linearFit
	cfg config

	nIter int
}

// NewElasticNet はエラスティックネットを作成する（デフォルト alpha = 1, lambda = 0.1）
func NewElasticNet(opts ...Option) *ElasticNet {
	return &ElasticNet{
		linearFit: newLinearFit("ElasticNet"),
		cfg: newConfig(config{
			fitIntercept: true,
			alpha:        1,
			lambda:       0.1,
			maxIter:      DefaultENetMaxIter,
			tol:          DefaultENetTol,
		}, opts),
	}
}

// NewLasso は alpha = 1 のエラスティックネットを作成する
func NewLasso(opts ...Option) *ElasticNet {
	return NewElasticNet(append([]Option{WithAlpha(1)}, opts...)...)
}

// Fit は座標降下法で係数を推定する
func (e *ElasticNet) Fit(X, y mat.Matrix) (err error) {
	const op = "ElasticNet.Fit"
	defer errors.Recover(&err, op)

	if e.cfg.alpha < 0 || e.cfg.alpha > 1 {
		return errors.NewValidationError("alpha", "must be in [0, 1]", e.cfg.alpha)
	}
	if e.cfg.lambda < 0 {
		return errors.NewValidationError("lambda", "must be non-negative", e.cfg.lambda)
	}
	rows, cols, yv, err := checkXY(op, X, y)
	if err != nil {
		return err
	}

	Z, means, scales := standardized(X)
	yMean := stat.Mean(yv, nil)
	resid := make([]float64, rows)
	for i, v := range yv {
		resid[i] = v - yMean
	}

	n := float64(rows)
	l1 := e.cfg.lambda * e.cfg.alpha
	l2 := e.cfg.lambda * (1 - e.cfg.alpha)

	// 定数列は Σz² = 0 なので更新しない
	colSS := make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := Z.ColView(j)
		colSS[j] = mat.Dot(col, col) / n
	}

	beta := make([]float64, cols)
	var maxDelta float64
	e.nIter = 0
	for iter := 1; iter <= e.cfg.maxIter; iter++ {
		e.nIter = iter
		maxDelta = 0
		for j := 0; j < cols; j++ {
			if colSS[j] == 0 {
				continue
			}
			old := beta[j]
			var rho float64
			for i := 0; i < rows; i++ {
				rho += Z.At(i, j) * resid[i]
			}
			rho = rho/n + colSS[j]*old
			next := errors.SoftThreshold(rho, l1) / (colSS[j] + l2)
			if next != old {
				d := next - old
				for i := 0; i < rows; i++ {
					resid[i] -= Z.At(i, j) * d
				}
				beta[j] = next
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
		}
		if maxDelta < e.cfg.tol {
			break
		}
	}
	if err := errors.CheckNumericalStability("coordinate_descent", beta, e.nIter); err != nil {
		return err
	}
	if maxDelta >= e.cfg.tol {
		errors.Warn(errors.NewConvergenceWarning(op, e.nIter, fmt.Sprintf("last coefficient change %.3g", maxDelta)))
	}

	coef, intercept := unstandardize(beta, means, scales, yMean)
	e.setFit(coef, intercept, X)
	return nil
}

// NIter は実行したスイープ数を返す
func (e *ElasticNet) NIter() int { return e.nIter }

// NonZero は非ゼロ係数の数を返す
func (e *ElasticNet) NonZero() int {
	n := 0
	for _, b := range e.coef {
		if b != 0 {
			n++
		}
	}
	return n
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (e *ElasticNet) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"alpha":    e.cfg.alpha,
		"lambda":   e.cfg.lambda,
		"max_iter": e.cfg.maxIter,
		"tol":      e.cfg.tol,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (e *ElasticNet) SetParams(params map[string]interface{}) error {
	if err := model.CheckKnownParams(e.name, params, "alpha", "lambda", "max_iter", "tol"); err != nil {
		return err
	}
	for _, key := range []string{"alpha", "lambda", "tol"} {
		v, ok, err := model.FloatParam(params, key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		switch key {
		case "alpha":
			e.cfg.alpha = v
		case "lambda":
			e.cfg.lambda = v
		case "tol":
			e.cfg.tol = v
		}
	}
	if v, ok, err := model.IntParam(params, "max_iter"); err != nil {
		return err
	} else if ok {
		e.cfg.maxIter = v
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (e *ElasticNet) Clone() model.SKLearnCompatible {
	return &ElasticNet{linearFit: newLinearFit(e.name), cfg: e.cfg}
}

// ExportWeights はモデルの重みをエクスポート
func (e *ElasticNet) ExportWeights() (*model.ModelWeights, error) {
	return e.exportWeights(e.GetParams(false))
}

// ImportWeights はエクスポートされた重みを読み込む
func (e *ElasticNet) ImportWeights(w *model.ModelWeights) error {
	return e.importWeights(w, e.SetParams)
}

// Name returns the registry name of the model.
func (e *ElasticNet) Name() string {
	if e.cfg.alpha == 1 {
		return "lasso"
	}
	return "enet"
}

func (e *ElasticNet) String() string {
	return fmt.Sprintf("ElasticNet(alpha=%g, lambda=%g)", e.cfg.alpha, e.cfg.lambda)
}
