package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultCorrelationCutoff は相関フィルタの既定しきい値
const DefaultCorrelationCutoff = 0.9

// CorrelationFilter removes predictors until no pair has an absolute
// correlation above Cutoff. At each step the pair with the largest absolute
// correlation is found and the member with the larger mean absolute
// correlation to the remaining predictors is dropped.
type CorrelationFilter struct {
	*model.StateManager

	Cutoff float64

	retained []int
	dropped  []int
}

// NewCorrelationFilter は新しい相関フィルタを作成する
func NewCorrelationFilter(cutoff float64) *CorrelationFilter {
	return &CorrelationFilter{
		StateManager: model.NewStateManager("CorrelationFilter"),
		Cutoff:       cutoff,
	}
}

// Fit は削除する列を決める
func (f *CorrelationFilter) Fit(X mat.Matrix) (err error) {
	defer resetOnError(f.StateManager, &err)
	r, c, err := checkFitInput("CorrelationFilter.Fit", X)
	if err != nil {
		return err
	}
	if f.Cutoff < 0 || f.Cutoff > 1 {
		return errors.NewValidationError("cutoff", "must be in [0, 1]", f.Cutoff)
	}

	f.dropped = FindCorrelation(AbsCorrelation(X), f.Cutoff)
	f.retained = complementOf(c, f.dropped)
	f.SetFitted(c, r)
	return nil
}

// Transform は残す列だけを返す
func (f *CorrelationFilter) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := f.RequireFitted("CorrelationFilter.Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := f.CheckFeatures("CorrelationFilter.Transform", c); err != nil {
		return nil, err
	}
	return selectColumns(X, f.retained), nil
}

// FitTransform は Fit と Transform を続けて実行する
func (f *CorrelationFilter) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := f.Fit(X); err != nil {
		return nil, err
	}
	return f.Transform(X)
}

// Retained は残した列の元インデックスを昇順で返す
func (f *CorrelationFilter) Retained() []int { return append([]int(nil), f.retained...) }

// Dropped は削除した列の元インデックスを削除順で返す
func (f *CorrelationFilter) Dropped() []int { return append([]int(nil), f.dropped...) }

// Clone returns an unfitted filter with the same cutoff.
func (f *CorrelationFilter) Clone() model.CloneableTransformer {
	return NewCorrelationFilter(f.Cutoff)
}

func (f *CorrelationFilter) String() string {
	return fmt.Sprintf("CorrelationFilter(cutoff=%g)", f.Cutoff)
}

// AbsCorrelation returns the matrix of absolute Pearson correlations between
// the columns of X, computed on pairwise complete observations. Pairs with a
// constant column get 0.
func AbsCorrelation(X mat.Matrix) *mat.SymDense {
	corr := Correlation(X)
	p := corr.SymmetricDim()
	out := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := math.Abs(corr.At(i, j))
			if math.IsNaN(v) {
				v = 0
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

// Correlation returns the Pearson correlation matrix of the columns of X on
// pairwise complete observations. Undefined entries are NaN.
func Correlation(X mat.Matrix) *mat.SymDense {
	_, p := X.Dims()
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = column(X, j)
	}
	out := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		out.SetSym(i, i, 1)
		for j := i + 1; j < p; j++ {
			out.SetSym(i, j, pairwiseCorrelation(cols[i], cols[j]))
		}
	}
	return out
}

func pairwiseCorrelation(a, b []float64) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	if len(x) < 2 || stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// FindCorrelation returns, in removal order, the columns to drop so that no
// remaining pair of the absolute correlation matrix exceeds cutoff.
func FindCorrelation(abs mat.Symmetric, cutoff float64) []int {
	p := abs.SymmetricDim()
	active := make([]bool, p)
	for i := range active {
		active[i] = true
	}

	meanAbs := func(k int) float64 {
		var sum float64
		n := 0
		for j := 0; j < p; j++ {
			if j == k || !active[j] {
				continue
			}
			sum += abs.At(k, j)
			n++
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}

	var dropped []int
	for {
		a, b, maxCorr := -1, -1, cutoff
		for i := 0; i < p; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < p; j++ {
				if active[j] && abs.At(i, j) > maxCorr {
					a, b, maxCorr = i, j, abs.At(i, j)
				}
			}
		}
		if a < 0 {
			return dropped
		}

		drop := b
		if meanAbs(a) > meanAbs(b) {
			drop = a
		}
		active[drop] = false
		dropped = append(dropped, drop)
	}
}

func complementOf(p int, drop []int) []int {
	gone := make([]bool, p)
	for _, d := range drop {
		gone[d] = true
	}
	keep := make([]int, 0, p-len(drop))
	for j := 0; j < p; j++ {
		if !gone[j] {
			keep = append(keep, j)
		}
	}
	return keep
}
