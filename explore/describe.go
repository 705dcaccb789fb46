// Package explore computes the exploratory summaries used before modeling:
// per-column descriptive statistics and skewness, missing-value patterns,
// near-zero-variance diagnostics and between-predictor correlations.
package explore

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/apmkit/dataset"
)

// Skewness returns the sample skewness of x with NaN values removed:
//
//	g1 = m3 / m2^(3/2)
//
// where m2 and m3 are the population central moments (type 1 in e1071).
// It is NaN for fewer than three observations or a constant x.
func Skewness(x []float64) float64 {
	vals := finite(x)
	if len(vals) < 3 {
		return math.NaN()
	}
	mean := stat.Mean(vals, nil)
	var m2, m3 float64
	for _, v := range vals {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	n := float64(len(vals))
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return math.NaN()
	}
	return m3 / math.Pow(m2, 1.5)
}

// ColumnSummary describes one numeric predictor.
type ColumnSummary struct {
	Name     string  `json:"name"`
	N        int     `json:"n"`
	Missing  int     `json:"missing"`
	Mean     float64 `json:"mean"`
	SD       float64 `json:"sd"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
}

// Describe は数値予測変数ごとの要約統計量を返す（欠損は除いて計算）
func Describe(f *dataset.Frame) []ColumnSummary {
	if f.X == nil {
		return nil
	}
	r, c := f.X.Dims()
	out := make([]ColumnSummary, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, f.X)
		vals := finite(col)
		s := ColumnSummary{Name: f.NumericNames[j], N: len(vals), Missing: r - len(vals)}
		switch len(vals) {
		case 0:
			s.Mean, s.SD, s.Min, s.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		case 1:
			s.Mean, s.SD, s.Min, s.Max = vals[0], math.NaN(), vals[0], vals[0]
		default:
			s.Mean, s.SD = stat.MeanStdDev(vals, nil)
			s.Min, s.Max = floats.Min(vals), floats.Max(vals)
		}
		s.Skewness = Skewness(vals)
		out[j] = s
	}
	return out
}

// SkewnessTable returns the skewness of every numeric predictor keyed by name.
func SkewnessTable(f *dataset.Frame) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range Describe(f) {
		out[s.Name] = s.Skewness
	}
	return out
}

func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
