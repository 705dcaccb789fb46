// Package preprocessing は予測変数の変換器（中心化・スケーリング、Box-Cox、
// PCA、相関フィルタ、分散ゼロ近傍の除外、欠損補完、spatial sign）を提供する
//
// すべての変換器は model.CloneableTransformer を実装し、パイプラインの中で
// リサンプルごとに学習し直される。
package preprocessing

import (
	"math"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// resetOnError は Fit が失敗したとき変換器を未学習に戻す
func resetOnError(s *model.StateManager, err *error) {
	if *err != nil {
		s.Reset()
	}
}

func checkFitInput(op string, X mat.Matrix) (int, int, error) {
	if X == nil {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return r, c, nil
}

// observed returns the non-NaN values of column j.
func observed(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	out := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		if v := X.At(i, j); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func column(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = X.At(i, j)
	}
	return out
}

func selectColumns(X mat.Matrix, cols []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for i := 0; i < r; i++ {
		for j, c := range cols {
			out.Set(i, j, X.At(i, c))
		}
	}
	return out
}

func hasMissing(X mat.Matrix) bool {
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(X.At(i, j)) {
				return true
			}
		}
	}
	return false
}
