package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Default cut points of the near-zero-variance rule.
const (
	DefaultFreqCut   = 95.0 / 5.0
	DefaultUniqueCut = 10.0
)

// NZVMetric は1列分の分散ゼロ近傍の判定材料
type NZVMetric struct {
	// FreqRatio は最頻値と2番目に多い値の出現数の比
	FreqRatio float64 `json:"freq_ratio"`
	// PercentUnique は異なる値の数 / 観測数 × 100
	PercentUnique float64 `json:"percent_unique"`
	ZeroVar       bool    `json:"zero_var"`
	NZV           bool    `json:"nzv"`
}

// NearZeroVarMetrics computes the near-zero-variance statistics of every
// column. A column is flagged when it has a single distinct value, or when its
// frequency ratio exceeds freqCut and its percent of unique values is at most
// uniqueCut. NaN values are ignored.
func NearZeroVarMetrics(X mat.Matrix, freqCut, uniqueCut float64) []NZVMetric {
	_, c := X.Dims()
	out := make([]NZVMetric, c)
	for j := 0; j < c; j++ {
		vals := observed(X, j)
		counts := make(map[float64]int)
		for _, v := range vals {
			counts[v]++
		}
		freqs := make([]int, 0, len(counts))
		for _, n := range counts {
			freqs = append(freqs, n)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(freqs)))

		m := NZVMetric{}
		switch len(freqs) {
		case 0:
			m.ZeroVar = true
		case 1:
			m.ZeroVar = true
			m.FreqRatio = 0
		default:
			m.FreqRatio = float64(freqs[0]) / float64(freqs[1])
		}
		if len(vals) > 0 {
			m.PercentUnique = 100 * float64(len(counts)) / float64(len(vals))
		}
		m.NZV = m.ZeroVar || (m.FreqRatio > freqCut && m.PercentUnique <= uniqueCut)
		out[j] = m
	}
	return out
}

// NearZeroVar drops zero-variance and near-zero-variance predictors.
type NearZeroVar struct {
	*model.StateManager

	FreqCut   float64
	UniqueCut float64

	metrics  []NZVMetric
	retained []int
}

// NewNearZeroVar はデフォルトのしきい値（95/5, 10%）で作成する
func NewNearZeroVar() *NearZeroVar {
	return &NearZeroVar{
		StateManager: model.NewStateManager("NearZeroVar"),
		FreqCut:      DefaultFreqCut,
		UniqueCut:    DefaultUniqueCut,
	}
}

// Fit は各列の指標を計算して残す列を決める
func (n *NearZeroVar) Fit(X mat.Matrix) (err error) {
	defer resetOnError(n.StateManager, &err)
	r, c, err := checkFitInput("NearZeroVar.Fit", X)
	if err != nil {
		return err
	}
	if n.FreqCut <= 1 || n.UniqueCut <= 0 || math.IsNaN(n.FreqCut) {
		return errors.NewValidationError("freq_cut", "freq_cut must exceed 1 and unique_cut must be positive", n.FreqCut)
	}

	metrics := NearZeroVarMetrics(X, n.FreqCut, n.UniqueCut)
	var retained []int
	for j, m := range metrics {
		if !m.NZV {
			retained = append(retained, j)
		}
	}
	if len(retained) == 0 {
		return errors.NewModelError("NearZeroVar.Fit", "every predictor has near zero variance", errors.ErrEmptyData)
	}
	n.metrics, n.retained = metrics, retained
	n.SetFitted(c, r)
	return nil
}

// Transform は残す列だけを返す
func (n *NearZeroVar) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := n.RequireFitted("NearZeroVar.Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := n.CheckFeatures("NearZeroVar.Transform", c); err != nil {
		return nil, err
	}
	return selectColumns(X, n.retained), nil
}

// FitTransform は Fit と Transform を続けて実行する
func (n *NearZeroVar) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := n.Fit(X); err != nil {
		return nil, err
	}
	return n.Transform(X)
}

// Retained は残した列の元インデックスを返す
func (n *NearZeroVar) Retained() []int { return append([]int(nil), n.retained...) }

// Metrics は学習時の列ごとの指標を返す
func (n *NearZeroVar) Metrics() []NZVMetric { return append([]NZVMetric(nil), n.metrics...) }

// Clone returns an unfitted filter with the same cut points.
func (n *NearZeroVar) Clone() model.CloneableTransformer {
	c := NewNearZeroVar()
	c.FreqCut, c.UniqueCut = n.FreqCut, n.UniqueCut
	return c
}

func (n *NearZeroVar) String() string {
	return fmt.Sprintf("NearZeroVar(freq_cut=%g, unique_cut=%g)", n.FreqCut, n.UniqueCut)
}
