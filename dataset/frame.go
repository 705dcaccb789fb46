// Package dataset loads benchmark tables into gonum matrices and partitions
// them into training and test sets.
//
// A Frame keeps numeric predictors in a *mat.Dense (NaN marks a missing
// value), categorical predictors as string levels, and a single response
// column that is either numeric (regression) or a class label
// (classification).
package dataset

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Frame は1つのデータセット（予測変数と応答変数）を表す
type Frame struct {
	// NumericNames は数値予測変数の列名（X の列順）
	NumericNames []string
	// X は数値予測変数。欠損は NaN
	X *mat.Dense

	// CategoricalNames はカテゴリ予測変数の列名
	CategoricalNames []string
	// Categorical は列ごとの水準文字列。欠損は空文字列
	Categorical [][]string

	// ResponseName は応答変数の列名
	ResponseName string
	// Y は数値の応答（回帰）。分類の場合は nil
	Y []float64
	// Labels はクラスラベルの応答（分類）。回帰の場合は nil
	Labels []string
}

// Rows は行数を返す
func (f *Frame) Rows() int {
	if f.Y != nil {
		return len(f.Y)
	}
	if f.Labels != nil {
		return len(f.Labels)
	}
	if f.X != nil {
		r, _ := f.X.Dims()
		return r
	}
	if len(f.Categorical) > 0 {
		return len(f.Categorical[0])
	}
	return 0
}

// IsClassification reports whether the response holds class labels.
func (f *Frame) IsClassification() bool {
	return f.Labels != nil
}

// Numeric は数値予測変数の行列と列名を返す
func (f *Frame) Numeric() (*mat.Dense, []string) {
	return f.X, f.NumericNames
}

// Response は数値応答を n×1 のベクトルで返す
func (f *Frame) Response() (*mat.VecDense, error) {
	if f.Y == nil {
		return nil, errors.NewValueError("Frame.Response", "response "+f.ResponseName+" is categorical")
	}
	y := make([]float64, len(f.Y))
	copy(y, f.Y)
	return mat.NewVecDense(len(y), y), nil
}

// Levels はカテゴリ列の水準をソート済みで返す（欠損は除く）
func Levels(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Dummies は数値予測変数の後ろにカテゴリ予測変数のダミー列を追加した行列を返す
//
// fullRank が true の場合は各カテゴリ列の最初の水準を基準として落とす
// （treatment coding）。false の場合は全水準の列を作る（one-hot）。
// 欠損の水準は全ダミー列が NaN になる。
func (f *Frame) Dummies(fullRank bool) (*mat.Dense, []string) {
	n := f.Rows()
	names := append([]string(nil), f.NumericNames...)

	type dummy struct {
		col   int
		level string
	}
	var dummies []dummy
	for c, values := range f.Categorical {
		levels := Levels(values)
		if fullRank && len(levels) > 0 {
			levels = levels[1:]
		}
		for _, l := range levels {
			dummies = append(dummies, dummy{col: c, level: l})
			names = append(names, f.CategoricalNames[c]+l)
		}
	}

	nNum := len(f.NumericNames)
	if len(names) == 0 || n == 0 {
		return nil, names
	}
	out := mat.NewDense(n, len(names), nil)
	for i := 0; i < n; i++ {
		for j := 0; j < nNum; j++ {
			out.Set(i, j, f.X.At(i, j))
		}
		for d, dm := range dummies {
			v := f.Categorical[dm.col][i]
			switch {
			case v == "":
				out.Set(i, nNum+d, math.NaN())
			case v == dm.level:
				out.Set(i, nNum+d, 1)
			}
		}
	}
	return out, names
}

// Complete reports, per row, whether every predictor and the response are present.
func (f *Frame) Complete() []bool {
	n := f.Rows()
	ok := make([]bool, n)
	for i := 0; i < n; i++ {
		ok[i] = true
		for j := range f.NumericNames {
			if math.IsNaN(f.X.At(i, j)) {
				ok[i] = false
				break
			}
		}
		if !ok[i] {
			continue
		}
		for _, col := range f.Categorical {
			if col[i] == "" {
				ok[i] = false
				break
			}
		}
		if f.Y != nil && math.IsNaN(f.Y[i]) {
			ok[i] = false
		}
		if f.Labels != nil && f.Labels[i] == "" {
			ok[i] = false
		}
	}
	return ok
}

// DropIncomplete は欠損を含む行を除いた新しい Frame を返す
func (f *Frame) DropIncomplete() *Frame {
	var rows []int
	for i, ok := range f.Complete() {
		if ok {
			rows = append(rows, i)
		}
	}
	return f.Subset(rows)
}

// Subset は指定行だけを持つ新しい Frame を返す（行は indices の順）
func (f *Frame) Subset(indices []int) *Frame {
	out := &Frame{
		NumericNames:     append([]string(nil), f.NumericNames...),
		CategoricalNames: append([]string(nil), f.CategoricalNames...),
		ResponseName:     f.ResponseName,
	}
	if len(f.NumericNames) > 0 && len(indices) > 0 {
		out.X = SelectRows(f.X, indices)
	}
	out.Categorical = make([][]string, len(f.Categorical))
	for c, col := range f.Categorical {
		vals := make([]string, len(indices))
		for i, idx := range indices {
			vals[i] = col[idx]
		}
		out.Categorical[c] = vals
	}
	if f.Y != nil {
		out.Y = make([]float64, len(indices))
		for i, idx := range indices {
			out.Y[i] = f.Y[idx]
		}
	}
	if f.Labels != nil {
		out.Labels = make([]string, len(indices))
		for i, idx := range indices {
			out.Labels[i] = f.Labels[idx]
		}
	}
	return out
}

// Select は指定した予測変数だけを持つ新しい Frame を返す
// 名前は数値列・カテゴリ列のどちらでもよい
func (f *Frame) Select(cols []string) (*Frame, error) {
	numIdx := indexOf(f.NumericNames)
	catIdx := indexOf(f.CategoricalNames)

	out := &Frame{ResponseName: f.ResponseName, Y: f.Y, Labels: f.Labels}
	var keepNum []int
	for _, c := range cols {
		if j, ok := numIdx[c]; ok {
			keepNum = append(keepNum, j)
			out.NumericNames = append(out.NumericNames, c)
			continue
		}
		if j, ok := catIdx[c]; ok {
			out.CategoricalNames = append(out.CategoricalNames, c)
			out.Categorical = append(out.Categorical, f.Categorical[j])
			continue
		}
		return nil, errors.NewValueError("Frame.Select", "unknown column "+c)
	}
	if len(keepNum) > 0 {
		out.X = SelectColumns(f.X, keepNum)
	}
	return out, nil
}

// SelectRows は指定行を順に並べた新しい行列を返す
func SelectRows(X mat.Matrix, indices []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(indices), c, nil)
	for i, idx := range indices {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

// SelectColumns は指定列を順に並べた新しい行列を返す
func SelectColumns(X mat.Matrix, cols []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for i := 0; i < r; i++ {
		for j, c := range cols {
			out.Set(i, j, X.At(i, c))
		}
	}
	return out
}

// SelectVec は指定要素を順に並べた新しいベクトルを返す
func SelectVec(y mat.Vector, indices []int) *mat.VecDense {
	out := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		out.SetVec(i, y.AtVec(idx))
	}
	return out
}

func indexOf(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}
