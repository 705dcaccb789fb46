package explore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/preprocessing"
)

// NZVRow is the near-zero-variance diagnosis of one predictor.
type NZVRow struct {
	Name string `json:"name"`
	preprocessing.NZVMetric
}

// NearZeroVarReport applies the near-zero-variance rule to every predictor.
// Categorical predictors are coded by level index so the frequency ratio
// and percent unique are those of their levels.
func NearZeroVarReport(f *dataset.Frame, freqCut, uniqueCut float64) []NZVRow {
	names, X := codedPredictors(f)
	if X == nil {
		return nil
	}
	m := preprocessing.NearZeroVarMetrics(X, freqCut, uniqueCut)
	out := make([]NZVRow, len(names))
	for j, name := range names {
		out[j] = NZVRow{Name: name, NZVMetric: m[j]}
	}
	return out
}

// Flagged は NZV と判定された列名だけを返す
func Flagged(rows []NZVRow) []string {
	var out []string
	for _, r := range rows {
		if r.NZV {
			out = append(out, r.Name)
		}
	}
	return out
}

// CorrelationMatrix returns the numeric predictor names and their pairwise
// complete Pearson correlation matrix.
func CorrelationMatrix(f *dataset.Frame) ([]string, *mat.SymDense) {
	if f.X == nil {
		return nil, nil
	}
	return append([]string(nil), f.NumericNames...), preprocessing.Correlation(f.X)
}

// CorrelatedPair is a pair of predictors whose absolute correlation exceeds
// a cutoff.
type CorrelatedPair struct {
	A, B string
	R    float64
}

// HighCorrelations lists the pairs with |r| > cutoff, strongest first.
func HighCorrelations(f *dataset.Frame, cutoff float64) []CorrelatedPair {
	names, corr := CorrelationMatrix(f)
	if corr == nil {
		return nil
	}
	var out []CorrelatedPair
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			r := corr.At(i, j)
			if !math.IsNaN(r) && math.Abs(r) > cutoff {
				out = append(out, CorrelatedPair{A: names[i], B: names[j], R: r})
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return math.Abs(out[a].R) > math.Abs(out[b].R) })
	return out
}

// CorrelationPreview shows which numeric predictors a correlation filter
// with the given cutoff would remove and which it would keep.
func CorrelationPreview(f *dataset.Frame, cutoff float64) (kept, dropped []string) {
	if f.X == nil {
		return nil, nil
	}
	drop := preprocessing.FindCorrelation(preprocessing.AbsCorrelation(f.X), cutoff)
	isDropped := make(map[int]bool, len(drop))
	for _, j := range drop {
		isDropped[j] = true
	}
	for j, name := range f.NumericNames {
		if isDropped[j] {
			dropped = append(dropped, name)
		} else {
			kept = append(kept, name)
		}
	}
	return kept, dropped
}

func codedPredictors(f *dataset.Frame) ([]string, *mat.Dense) {
	n := f.Rows()
	p := len(f.CategoricalNames)
	if f.X != nil {
		_, c := f.X.Dims()
		p += c
	}
	if n == 0 || p == 0 {
		return nil, nil
	}
	X := mat.NewDense(n, p, nil)
	names := make([]string, 0, p)
	col := 0
	if f.X != nil {
		_, c := f.X.Dims()
		X.Slice(0, n, 0, c).(*mat.Dense).Copy(f.X)
		names = append(names, f.NumericNames...)
		col = c
	}
	for j, values := range f.Categorical {
		code := make(map[string]float64)
		for _, l := range dataset.Levels(values) {
			code[l] = float64(len(code))
		}
		for i, v := range values {
			if v == "" {
				X.Set(i, col, math.NaN())
			} else {
				X.Set(i, col, code[v])
			}
		}
		names = append(names, f.CategoricalNames[j])
		col++
	}
	return names, X
}
