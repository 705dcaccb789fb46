package linear

import (
	"fmt"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// PCR is principal component regression: the predictors are centered,
// scaled and projected on their first NComp principal components, and y is
// regressed on the component scores by least squares. The fitted model is
// linear in the original predictors, so Coef and Intercept are reported on
// that scale.
type PCR struct {
	linearFit
	cfg config

	pca *preprocessing.PCA
}

// NewPCR は主成分回帰を作成する（デフォルト ncomp = 1）
func NewPCR(opts ...Option) *PCR {
	return &PCR{
		linearFit: newLinearFit("PCR"),
		cfg:       newConfig(config{ncomp: 1}, opts),
	}
}

// Fit は主成分得点に対する最小二乗回帰を行う
func (p *PCR) Fit(X, y mat.Matrix) (err error) {
	const op = "PCR.Fit"
	defer errors.Recover(&err, op)

	_, cols, yv, err := checkXY(op, X, y)
	if err != nil {
		return err
	}
	if p.cfg.ncomp < 1 || p.cfg.ncomp > cols {
		return errors.NewValidationError("ncomp", fmt.Sprintf("must be in [1, %d]", cols), p.cfg.ncomp)
	}

	p.pca = preprocessing.NewPCA(preprocessing.WithPCAComponents(p.cfg.ncomp))
	scores, err := p.pca.FitTransform(X)
	if err != nil {
		return err
	}
	if k := p.pca.NComponents(); k < p.cfg.ncomp {
		return errors.NewValidationError("ncomp", fmt.Sprintf("only %d components available", k), p.cfg.ncomp)
	}

	gamma, err := solveLeastSquares(op, withInterceptColumn(scores), yv)
	if err != nil {
		return err
	}

	// β = V γ / sd, 切片 = γ0 - Σ β_j mean_j
	coef := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var b float64
		for k := 0; k < p.cfg.ncomp; k++ {
			b += p.pca.Components.At(j, k) * gamma[k+1]
		}
		coef[j] = b
	}
	means, scales := p.pca.Scaling()
	for j := range coef {
		coef[j] /= scales[j]
	}
	intercept := gamma[0]
	for j := range coef {
		intercept -= coef[j] * means[j]
	}
	p.setFit(coef, intercept, X)
	return nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (p *PCR) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{"ncomp": p.cfg.ncomp}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (p *PCR) SetParams(params map[string]interface{}) error {
	if err := model.CheckKnownParams(p.name, params, "ncomp"); err != nil {
		return err
	}
	if v, ok, err := model.IntParam(params, "ncomp"); err != nil {
		return err
	} else if ok {
		p.cfg.ncomp = v
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (p *PCR) Clone() model.SKLearnCompatible {
	return &PCR{linearFit: newLinearFit(p.name), cfg: p.cfg}
}

// ExportWeights はモデルの重みをエクスポート
func (p *PCR) ExportWeights() (*model.ModelWeights, error) {
	return p.exportWeights(p.GetParams(false))
}

// ImportWeights はエクスポートされた重みを読み込む
func (p *PCR) ImportWeights(w *model.ModelWeights) error {
	return p.importWeights(w, p.SetParams)
}

// Name returns the registry name of the model.
func (p *PCR) Name() string { return "pcr" }

func (p *PCR) String() string { return fmt.Sprintf("PCR(ncomp=%d)", p.cfg.ncomp) }
