package linear

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Defaults of the Huber M-estimator.
const (
	DefaultHuberK        = 1.345
	DefaultRobustMaxIter = 20
	DefaultRobustTol     = 1e-4

	// madConstant makes the MAD a consistent estimator of σ under normality.
	madConstant = 0.6745
)

// RobustRegression fits a linear model by Huber M-estimation with
// iteratively reweighted least squares. The residual scale is re-estimated at
// every step as MAD/0.6745 and observation i gets weight min(1, k/|r_i/s|).
//
// Iteration stops when the relative change of the residuals,
// sqrt(Σ(r_old - r)²/Σ r_old²), falls to Tol. When that does not happen
// within MaxIter steps Fit returns a *errors.ConvergenceError.
type RobustRegression struct {
	linearFit
	cfg config

	weights []float64
	scale   float64
	nIter   int
}

// NewRobustRegression は Huber 型のロバスト回帰を作成する
func NewRobustRegression(opts ...Option) *RobustRegression {
	return &RobustRegression{
		linearFit: newLinearFit("RobustRegression"),
		cfg: newConfig(config{
			fitIntercept: true,
			huberK:       DefaultHuberK,
			maxIter:      DefaultRobustMaxIter,
			tol:          DefaultRobustTol,
		}, opts),
	}
}

// Fit は IRLS で係数を推定する
func (rr *RobustRegression) Fit(X, y mat.Matrix) (err error) {
	const op = "RobustRegression.Fit"
	defer errors.Recover(&err, op)

	if rr.cfg.huberK <= 0 {
		return errors.NewValidationError("k", "must be positive", rr.cfg.huberK)
	}
	if rr.cfg.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", rr.cfg.maxIter)
	}
	rows, _, yv, err := checkXY(op, X, y)
	if err != nil {
		return err
	}

	A := mat.DenseCopyOf(X)
	if rr.cfg.fitIntercept {
		A = withInterceptColumn(X)
	}
	logger := log.GetLoggerWithName("linear").With(log.ModelNameKey, rr.name)

	w := make([]float64, rows)
	for i := range w {
		w[i] = 1
	}
	b, err := weightedLeastSquares(op, A, yv, w)
	if err != nil {
		return err
	}
	resid := residuals(A, b, yv)

	var delta float64
	converged := false
	iter := 0
	for iter = 1; iter <= rr.cfg.maxIter; iter++ {
		s := mad(resid) / madConstant
		rr.scale = s
		if s == 0 {
			// 完全に当てはまっている
			converged = true
			break
		}
		for i, r := range resid {
			u := math.Abs(r / s)
			w[i] = 1
			if u > rr.cfg.huberK {
				w[i] = rr.cfg.huberK / u
			}
		}

		b, err = weightedLeastSquares(op, A, yv, w)
		if err != nil {
			return err
		}
		newResid := residuals(A, b, yv)
		if err := errors.CheckNumericalStability("irls_residuals", newResid, iter); err != nil {
			return err
		}

		delta = relativeChange(resid, newResid)
		resid = newResid
		logger.Debug("IRLS step", log.IterationKey, iter, "delta", delta, "scale", s)
		if delta <= rr.cfg.tol {
			converged = true
			break
		}
	}
	if !converged {
		return errors.NewConvergenceError("Huber IRLS", rr.cfg.maxIter, delta)
	}

	rr.nIter = min(iter, rr.cfg.maxIter)
	rr.weights = w
	if rr.cfg.fitIntercept {
		rr.setFit(b[1:], b[0], X)
	} else {
		rr.setFit(b, 0, X)
	}
	return nil
}

func weightedLeastSquares(op string, A *mat.Dense, y, w []float64) ([]float64, error) {
	rows, cols := A.Dims()
	Aw := mat.NewDense(rows, cols, nil)
	yw := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < cols; j++ {
			Aw.Set(i, j, A.At(i, j)*sw)
		}
		yw[i] = y[i] * sw
	}
	return solveLeastSquares(op, Aw, yw)
}

func residuals(A *mat.Dense, b, y []float64) []float64 {
	rows, cols := A.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		fit := 0.0
		for j := 0; j < cols; j++ {
			fit += A.At(i, j) * b[j]
		}
		out[i] = y[i] - fit
	}
	return out
}

// mad is the median absolute deviation from zero, as used for residuals.
func mad(r []float64) float64 {
	abs := make([]float64, len(r))
	for i, v := range r {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	n := len(abs)
	if n%2 == 1 {
		return abs[n/2]
	}
	return (abs[n/2-1] + abs[n/2]) / 2
}

func relativeChange(old, cur []float64) float64 {
	var num, den float64
	for i := range old {
		d := old[i] - cur[i]
		num += d * d
		den += old[i] * old[i]
	}
	return math.Sqrt(num / math.Max(den, 1e-20))
}

// Weights は最終反復の観測値の重みを返す
func (rr *RobustRegression) Weights() []float64 { return append([]float64(nil), rr.weights...) }

// Scale は最終反復の残差スケール推定値を返す
func (rr *RobustRegression) Scale() float64 { return rr.scale }

// NIter は収束までの反復回数を返す
func (rr *RobustRegression) NIter() int { return rr.nIter }

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (rr *RobustRegression) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": rr.cfg.fitIntercept,
		"k":             rr.cfg.huberK,
		"max_iter":      rr.cfg.maxIter,
		"tol":           rr.cfg.tol,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (rr *RobustRegression) SetParams(params map[string]interface{}) error {
	if err := model.CheckKnownParams(rr.name, params, "fit_intercept", "k", "max_iter", "tol"); err != nil {
		return err
	}
	if v, ok, err := model.BoolParam(params, "fit_intercept"); err != nil {
		return err
	} else if ok {
		rr.cfg.fitIntercept = v
	}
	if v, ok, err := model.FloatParam(params, "k"); err != nil {
		return err
	} else if ok {
		rr.cfg.huberK = v
	}
	if v, ok, err := model.IntParam(params, "max_iter"); err != nil {
		return err
	} else if ok {
		rr.cfg.maxIter = v
	}
	if v, ok, err := model.FloatParam(params, "tol"); err != nil {
		return err
	} else if ok {
		rr.cfg.tol = v
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (rr *RobustRegression) Clone() model.SKLearnCompatible {
	return &RobustRegression{linearFit: newLinearFit(rr.name), cfg: rr.cfg}
}

// ExportWeights はモデルの重みをエクスポート
func (rr *RobustRegression) ExportWeights() (*model.ModelWeights, error) {
	return rr.exportWeights(rr.GetParams(false))
}

// ImportWeights はエクスポートされた重みを読み込む
func (rr *RobustRegression) ImportWeights(w *model.ModelWeights) error {
	return rr.importWeights(w, rr.SetParams)
}

// Name returns the registry name of the model.
func (rr *RobustRegression) Name() string { return "rlm" }

func (rr *RobustRegression) String() string {
	return fmt.Sprintf("RobustRegression(k=%g, max_iter=%d, tol=%g)", rr.cfg.huberK, rr.cfg.maxIter, rr.cfg.tol)
}
