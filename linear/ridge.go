package linear

import (
	"fmt"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge minimizes
//
//	(1/2n)·||y - ȳ - Zβ||² + (λ/2)·||β||²
//
// on predictors Z standardized to mean 0 and Σz²/n = 1, then maps β back to
// the original scale. Lambda = 0 is ordinary least squares.
type Ridge struct {
	linearFit
	cfg config
}

// NewRidge はリッジ回帰を作成する（デフォルト lambda = 0）
func NewRidge(opts ...Option) *Ridge {
	return &Ridge{
		linearFit: newLinearFit("Ridge"),
		cfg:       newConfig(config{fitIntercept: true}, opts),
	}
}

// Fit は正規方程式 (Z'Z/n + λI)β = Z'y/n を Cholesky 分解で解く
func (r *Ridge) Fit(X, y mat.Matrix) (err error) {
	const op = "Ridge.Fit"
	defer errors.Recover(&err, op)

	if r.cfg.lambda < 0 {
		return errors.NewValidationError("lambda", "must be non-negative", r.cfg.lambda)
	}
	rows, cols, yv, err := checkXY(op, X, y)
	if err != nil {
		return err
	}

	Z, means, scales := standardized(X)
	yMean := stat.Mean(yv, nil)
	yc := mat.NewVecDense(rows, nil)
	for i, v := range yv {
		yc.SetVec(i, v-yMean)
	}

	n := float64(rows)
	var gram mat.SymDense
	gram.SymOuterK(1/n, Z.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.cfg.lambda)
	}
	var rhs mat.VecDense
	rhs.MulVec(Z.T(), yc)
	rhs.ScaleVec(1/n, &rhs)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.NewModelError(op, "penalized gram matrix is not positive definite", errors.ErrSingularMatrix)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return errors.NewModelError(op, "failed to solve penalized system", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}

	b := make([]float64, cols)
	for j := range b {
		b[j] = beta.AtVec(j)
	}
	coef, intercept := unstandardize(b, means, scales, yMean)
	r.setFit(coef, intercept, X)
	return nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (r *Ridge) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{"lambda": r.cfg.lambda}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (r *Ridge) SetParams(params map[string]interface{}) error {
	if err := model.CheckKnownParams(r.name, params, "lambda"); err != nil {
		return err
	}
	if v, ok, err := model.FloatParam(params, "lambda"); err != nil {
		return err
	} else if ok {
		r.cfg.lambda = v
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (r *Ridge) Clone() model.SKLearnCompatible {
	return &Ridge{linearFit: newLinearFit(r.name), cfg: r.cfg}
}

// ExportWeights はモデルの重みをエクスポート
func (r *Ridge) ExportWeights() (*model.ModelWeights, error) {
	return r.exportWeights(r.GetParams(false))
}

// ImportWeights はエクスポートされた重みを読み込む
func (r *Ridge) ImportWeights(w *model.ModelWeights) error {
	return r.importWeights(w, r.SetParams)
}

// Name returns the registry name of the model.
func (r *Ridge) Name() string { return "ridge" }

func (r *Ridge) String() string { return fmt.Sprintf("Ridge(lambda=%g)", r.cfg.lambda) }
