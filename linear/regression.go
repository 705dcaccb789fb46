package linear

import (
	"fmt"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression は最小二乗法による線形回帰モデル
// 係数は QR 分解で求め、ランク落ちした計画行列は ErrSingularMatrix になる
type LinearRegression struct {
	linearFit
	cfg config
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
//
// 使用例:
//
//	lr := linear.NewLinearRegression()
//	err := lr.Fit(X, y)
//	predictions, err := lr.Predict(XTest)
func NewLinearRegression(opts ...Option) *LinearRegression {
	return &LinearRegression{
		linearFit: newLinearFit("LinearRegression"),
		cfg:       newConfig(config{fitIntercept: true}, opts),
	}
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	_, cols, yv, err := checkXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	A := mat.DenseCopyOf(X)
	if lr.cfg.fitIntercept {
		A = withInterceptColumn(X)
	}
	b, err := solveLeastSquares("LinearRegression.Fit", A, yv)
	if err != nil {
		return err
	}

	if lr.cfg.fitIntercept {
		lr.setFit(b[1:], b[0], X)
	} else {
		lr.setFit(b[:cols], 0, X)
	}
	return nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.cfg.fitIntercept,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	if err := model.CheckKnownParams(lr.name, params, "fit_intercept"); err != nil {
		return err
	}
	if v, ok, err := model.BoolParam(params, "fit_intercept"); err != nil {
		return err
	} else if ok {
		lr.cfg.fitIntercept = v
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (lr *LinearRegression) Clone() model.SKLearnCompatible {
	return NewLinearRegression(WithFitIntercept(lr.cfg.fitIntercept))
}

// ExportWeights はモデルの重みをエクスポート
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	return lr.exportWeights(lr.GetParams(false))
}

// ImportWeights はエクスポートされた重みを読み込み、学習済み状態にする
func (lr *LinearRegression) ImportWeights(w *model.ModelWeights) error {
	return lr.importWeights(w, lr.SetParams)
}

// Name returns the registry name of the model.
func (lr *LinearRegression) Name() string { return "lm" }

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.cfg.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, fitted=true)", lr.cfg.fitIntercept, nFeatures)
}
