package preprocessing

import (
	"fmt"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultPCAThreshold is the share of variance the retained components explain.
const DefaultPCAThreshold = 0.95

// PCA は中心化・スケーリングした予測変数を主成分に射影する
//
// NComp > 0 の場合はその数の主成分を使い、そうでなければ累積寄与率が
// Threshold 以上になる最小の主成分数（2 未満にはしない）を使う。
type PCA struct {
	*model.StateManager

	// Threshold is the cumulative variance share to keep when NComp is 0.
	Threshold float64
	// NComp fixes the number of components when positive.
	NComp int

	scaler *StandardScaler
	// Components は p×k の負荷量行列
	Components *mat.Dense
	// ExplainedVarianceRatio は全主成分の寄与率
	ExplainedVarianceRatio []float64
}

// PCAOption configures a PCA.
type PCAOption func(*PCA)

// WithPCAThreshold sets the cumulative variance threshold.
func WithPCAThreshold(t float64) PCAOption {
	return func(p *PCA) { p.Threshold = t }
}

// WithPCAComponents fixes the number of components.
func WithPCAComponents(k int) PCAOption {
	return func(p *PCA) { p.NComp = k }
}

// NewPCA は新しい PCA 変換器を作成する
func NewPCA(opts ...PCAOption) *PCA {
	p := &PCA{
		StateManager: model.NewStateManager("PCA"),
		Threshold:    DefaultPCAThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit は主成分を求める
func (p *PCA) Fit(X mat.Matrix) (err error) {
	defer resetOnError(p.StateManager, &err)
	r, c, err := checkFitInput("PCA.Fit", X)
	if err != nil {
		return err
	}
	if err := errors.CheckFinite("PCA.Fit", X); err != nil {
		return err
	}
	if p.NComp < 0 || p.NComp > c {
		return errors.NewValidationError("ncomp", fmt.Sprintf("must be in [0, %d]", c), p.NComp)
	}
	if p.NComp == 0 && (p.Threshold <= 0 || p.Threshold > 1) {
		return errors.NewValidationError("threshold", "must be in (0, 1]", p.Threshold)
	}

	p.scaler = NewStandardScaler(true, true)
	scaled, err := p.scaler.FitTransform(X)
	if err != nil {
		return err
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(scaled, nil); !ok {
		return errors.NewModelError("PCA.Fit", "singular value decomposition failed", errors.ErrSingularMatrix)
	}
	vars := pc.VarsTo(nil)
	var total float64
	for _, v := range vars {
		total += v
	}
	p.ExplainedVarianceRatio = make([]float64, len(vars))
	for i, v := range vars {
		p.ExplainedVarianceRatio[i] = v / total
	}

	k := p.NComp
	if k == 0 {
		k = ComponentsForThreshold(p.ExplainedVarianceRatio, p.Threshold)
		if k < 2 && len(vars) >= 2 {
			k = 2
		}
	}
	if k > len(vars) {
		k = len(vars)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	p.Components = mat.DenseCopyOf(vecs.Slice(0, c, 0, k))

	p.SetFitted(c, r)
	return nil
}

// ComponentsForThreshold returns the smallest k whose cumulative ratio reaches t.
func ComponentsForThreshold(ratios []float64, t float64) int {
	var cum float64
	for i, r := range ratios {
		cum += r
		if cum >= t-1e-12 {
			return i + 1
		}
	}
	return len(ratios)
}

// Transform は学習データの中心・尺度で標準化してから主成分得点を返す
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.RequireFitted("PCA.Transform"); err != nil {
		return nil, err
	}
	scaled, err := p.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	var scores mat.Dense
	scores.Mul(scaled, p.Components)
	return &scores, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (p *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// Scaling は学習時の中心と尺度を返す
func (p *PCA) Scaling() (means, scales []float64) {
	if p.scaler == nil {
		return nil, nil
	}
	return append([]float64(nil), p.scaler.Mean...), append([]float64(nil), p.scaler.Scale...)
}

// NComponents は保持した主成分数を返す
func (p *PCA) NComponents() int {
	if p.Components == nil {
		return 0
	}
	_, k := p.Components.Dims()
	return k
}

// Names returns PC1..PCk.
func (p *PCA) Names() []string {
	names := make([]string, p.NComponents())
	for i := range names {
		names[i] = fmt.Sprintf("PC%d", i+1)
	}
	return names
}

// Clone returns an unfitted PCA with the same settings.
func (p *PCA) Clone() model.CloneableTransformer {
	return NewPCA(WithPCAThreshold(p.Threshold), WithPCAComponents(p.NComp))
}

func (p *PCA) String() string {
	if p.NComp > 0 {
		return fmt.Sprintf("PCA(ncomp=%d)", p.NComp)
	}
	return fmt.Sprintf("PCA(thresh=%g)", p.Threshold)
}
