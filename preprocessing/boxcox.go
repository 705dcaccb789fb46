package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	boxCoxLambdaMin  = -2.0
	boxCoxLambdaMax  = 2.0
	boxCoxLambdaStep = 0.1
	boxCoxFudge      = 0.2
	boxCoxMinUnique  = 3
)

// BoxCox estimates one Box-Cox λ per column by maximum likelihood over the
// grid -2, -1.9, ..., 2 and applies
//
//	x(λ) = (x^λ - 1) / λ   (λ ≠ 0)
//	x(λ) = log(x)          (λ = 0)
//
// Columns with a non-positive value or fewer than three distinct values are
// left untouched. An estimate within 0.2 of zero becomes the log transform and
// one within 0.2 of one leaves the column as is.
type BoxCox struct {
	*model.StateManager

	// Lambdas holds the chosen λ per column; NaN means the column is not transformed.
	Lambdas []float64
}

// NewBoxCox は新しい BoxCox 変換器を作成する
func NewBoxCox() *BoxCox {
	return &BoxCox{StateManager: model.NewStateManager("BoxCox")}
}

// Fit は列ごとに λ を推定する
func (b *BoxCox) Fit(X mat.Matrix) (err error) {
	defer resetOnError(b.StateManager, &err)
	r, c, err := checkFitInput("BoxCox.Fit", X)
	if err != nil {
		return err
	}
	b.Lambdas = make([]float64, c)
	for j := 0; j < c; j++ {
		b.Lambdas[j] = EstimateBoxCoxLambda(observed(X, j))
	}
	b.SetFitted(c, r)
	return nil
}

// Transform は推定済みの λ で各列を変換する
func (b *BoxCox) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := b.RequireFitted("BoxCox.Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := b.CheckFeatures("BoxCox.Transform", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		lambda := b.Lambdas[j]
		if math.IsNaN(lambda) || math.IsNaN(v) {
			return v
		}
		return boxCoxValue(v, lambda)
	}, X)
	return out, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (b *BoxCox) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := b.Fit(X); err != nil {
		return nil, err
	}
	return b.Transform(X)
}

// Clone returns an unfitted BoxCox.
func (b *BoxCox) Clone() model.CloneableTransformer {
	return NewBoxCox()
}

func (b *BoxCox) String() string {
	return fmt.Sprintf("BoxCox(lambdas=%v)", b.Lambdas)
}

// EstimateBoxCoxLambda returns the λ that maximizes the profile likelihood of
// x, after the fudge rounding. NaN means no transformation applies.
func EstimateBoxCoxLambda(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	uniq := make(map[float64]struct{})
	for _, v := range x {
		if v <= 0 {
			return math.NaN()
		}
		uniq[v] = struct{}{}
	}
	if len(uniq) < boxCoxMinUnique {
		return math.NaN()
	}

	best, bestLL := math.NaN(), math.Inf(-1)
	steps := int(math.Round((boxCoxLambdaMax - boxCoxLambdaMin) / boxCoxLambdaStep))
	for s := 0; s <= steps; s++ {
		lambda := boxCoxLambdaMin + float64(s)*boxCoxLambdaStep
		ll := BoxCoxLogLik(x, lambda)
		if ll > bestLL {
			best, bestLL = lambda, ll
		}
	}

	switch {
	case math.Abs(best) < boxCoxFudge:
		return 0
	case math.Abs(best-1) < boxCoxFudge:
		return math.NaN()
	}
	return math.Round(best*10) / 10
}

// BoxCoxLogLik is the profile log-likelihood of λ for an intercept-only
// model, -n/2·log(σ̂²(λ)) + (λ-1)·Σ log x, with σ̂² the ML variance.
func BoxCoxLogLik(x []float64, lambda float64) float64 {
	n := float64(len(x))
	t := make([]float64, len(x))
	var sumLog float64
	for i, v := range x {
		t[i] = boxCoxValue(v, lambda)
		sumLog += math.Log(v)
	}
	mean := stat.Mean(t, nil)
	var ss float64
	for _, v := range t {
		ss += (v - mean) * (v - mean)
	}
	if ss <= 0 {
		return math.Inf(-1)
	}
	return -n/2*math.Log(ss/n) + (lambda-1)*sumLog
}

func boxCoxValue(v, lambda float64) float64 {
	if math.Abs(lambda) < 1e-12 {
		return math.Log(v)
	}
	return (math.Pow(v, lambda) - 1) / lambda
}

// ErrNonPositive is returned by BoxCoxInverse for a λ that cannot be inverted.
var ErrNonPositive = errors.New("box-cox inverse undefined for this value")

// BoxCoxInverse maps a transformed value back to the original scale.
func BoxCoxInverse(t, lambda float64) (float64, error) {
	if math.IsNaN(lambda) {
		return t, nil
	}
	if math.Abs(lambda) < 1e-12 {
		return math.Exp(t), nil
	}
	base := lambda*t + 1
	if base <= 0 {
		return math.NaN(), ErrNonPositive
	}
	return math.Pow(base, 1/lambda), nil
}
