package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/core/parallel"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MedianImputer は欠損値を学習データの列の中央値で埋める
type MedianImputer struct {
	*model.StateManager

	Medians []float64
}

// NewMedianImputer は新しい MedianImputer を作成する
func NewMedianImputer() *MedianImputer {
	return &MedianImputer{StateManager: model.NewStateManager("MedianImputer")}
}

// Fit は列ごとの中央値を計算する
func (m *MedianImputer) Fit(X mat.Matrix) (err error) {
	defer resetOnError(m.StateManager, &err)
	r, c, err := checkFitInput("MedianImputer.Fit", X)
	if err != nil {
		return err
	}
	m.Medians = make([]float64, c)
	for j := 0; j < c; j++ {
		vals := observed(X, j)
		if len(vals) == 0 {
			return errors.NewModelError("MedianImputer.Fit", fmt.Sprintf("column %d has no observed values", j), errors.ErrMissingValues)
		}
		m.Medians[j] = Median(vals)
	}
	m.SetFitted(c, r)
	return nil
}

// Transform は NaN を中央値で置き換える
func (m *MedianImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.RequireFitted("MedianImputer.Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.CheckFeatures("MedianImputer.Transform", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return m.Medians[j]
		}
		return v
	}, X)
	return out, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (m *MedianImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// Clone returns an unfitted MedianImputer.
func (m *MedianImputer) Clone() model.CloneableTransformer { return NewMedianImputer() }

func (m *MedianImputer) String() string { return "MedianImputer()" }

// Median returns the sample median; even-length inputs average the two middle values.
func Median(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// DefaultImputeNeighbors is the k of KNNImputer.
const DefaultImputeNeighbors = 5

const minParallelImputeRows = 128

// KNNImputer fills a missing value with the mean of that column over the K
// nearest complete training rows. Distances are Euclidean on standardized
// columns, using only the columns observed in the row being imputed. The
// output stays on the original scale.
type KNNImputer struct {
	*model.StateManager

	K int

	scaler    *StandardScaler
	reference *mat.Dense // complete training rows, standardized
}

// NewKNNImputer は k 近傍補完器を作成する
func NewKNNImputer(k int) *KNNImputer {
	if k <= 0 {
		k = DefaultImputeNeighbors
	}
	return &KNNImputer{StateManager: model.NewStateManager("KNNImputer"), K: k}
}

// Fit は標準化の統計量と参照用の完全な行を保持する
func (k *KNNImputer) Fit(X mat.Matrix) (err error) {
	defer resetOnError(k.StateManager, &err)
	r, c, err := checkFitInput("KNNImputer.Fit", X)
	if err != nil {
		return err
	}
	k.scaler = NewStandardScaler(true, true)
	scaled, err := k.scaler.FitTransform(X)
	if err != nil {
		return err
	}

	var rows []int
	for i := 0; i < r; i++ {
		complete := true
		for j := 0; j < c; j++ {
			if math.IsNaN(scaled.At(i, j)) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return errors.NewModelError("KNNImputer.Fit", "no complete rows to use as neighbours", errors.ErrMissingValues)
	}
	k.reference = mat.NewDense(len(rows), c, nil)
	for i, idx := range rows {
		for j := 0; j < c; j++ {
			k.reference.Set(i, j, scaled.At(idx, j))
		}
	}
	k.SetFitted(c, r)
	return nil
}

// Transform は欠損を近傍の平均で埋める
func (k *KNNImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := k.RequireFitted("KNNImputer.Transform"); err != nil {
		return nil, err
	}
	scaledM, err := k.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	scaled := scaledM.(*mat.Dense)
	r, _ := scaled.Dims()
	nRef, _ := k.reference.Dims()

	type neighbour struct {
		idx  int
		dist float64
	}
	kk := k.K
	if kk > nRef {
		kk = nRef
	}
	// 各行は独立に埋めるので行ごとに分割して並列化する
	parallel.ParallelizeWithThreshold(r, minParallelImputeRows, 0, func(start, end int) {
		dists := make([]neighbour, nRef)
		for i := start; i < end; i++ {
			row := scaled.RawRowView(i)
			var missing []int
			for j, v := range row {
				if math.IsNaN(v) {
					missing = append(missing, j)
				}
			}
			if len(missing) == 0 {
				continue
			}

			for ref := 0; ref < nRef; ref++ {
				var d float64
				for j, v := range row {
					if math.IsNaN(v) {
						continue
					}
					diff := v - k.reference.At(ref, j)
					d += diff * diff
				}
				dists[ref] = neighbour{idx: ref, dist: d}
			}
			sort.SliceStable(dists, func(a, b int) bool { return dists[a].dist < dists[b].dist })

			for _, j := range missing {
				var sum float64
				for _, nb := range dists[:kk] {
					sum += k.reference.At(nb.idx, j)
				}
				row[j] = sum / float64(kk)
			}
		}
	})
	return k.scaler.InverseTransform(scaled)
}

// FitTransform は Fit と Transform を続けて実行する
func (k *KNNImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := k.Fit(X); err != nil {
		return nil, err
	}
	return k.Transform(X)
}

// Clone returns an unfitted imputer with the same k.
func (k *KNNImputer) Clone() model.CloneableTransformer { return NewKNNImputer(k.K) }

func (k *KNNImputer) String() string { return fmt.Sprintf("KNNImputer(k=%d)", k.K) }
