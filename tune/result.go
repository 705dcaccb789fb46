package tune

import (
	"math"
	"time"

	"github.com/google/btree"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/metrics"
)

// ResampleScore is the assessment-set performance of one resample.
type ResampleScore struct {
	Resample string `json:"resample"`
	metrics.Summary
}

// CVRow is the cross-validated performance of one grid point.
type CVRow struct {
	// Index は ExpandGrid 順での位置
	Index     int             `json:"index"`
	Params    Params          `json:"params"`
	Resamples []ResampleScore `json:"resamples,omitempty"`
	Mean      metrics.Summary `json:"mean"`
	SD        metrics.Summary `json:"sd"`
	// Err は最初に失敗したリサンプルのエラー（失敗していなければ nil）
	Err error `json:"-"`
}

// Failed reports whether any resample of the grid point failed.
func (r CVRow) Failed() bool { return r.Err != nil }

// RMSESE is the standard error of the mean resampled RMSE.
func (r CVRow) RMSESE() float64 {
	if len(r.Resamples) == 0 {
		return math.NaN()
	}
	return r.SD.RMSE / math.Sqrt(float64(len(r.Resamples)))
}

// summarize は各指標の平均と標準偏差を求める。NaN（定義できない Rsquared）は除く
func (r *CVRow) summarize() {
	pick := func(f func(metrics.Summary) float64) (float64, float64) {
		vals := make([]float64, 0, len(r.Resamples))
		for _, s := range r.Resamples {
			if v := f(s.Summary); !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		switch len(vals) {
		case 0:
			return math.NaN(), math.NaN()
		case 1:
			return vals[0], math.NaN()
		}
		return stat.MeanStdDev(vals, nil)
	}
	r.Mean.RMSE, r.SD.RMSE = pick(func(s metrics.Summary) float64 { return s.RMSE })
	r.Mean.Rsquared, r.SD.Rsquared = pick(func(s metrics.Summary) float64 { return s.Rsquared })
	r.Mean.MAE, r.SD.MAE = pick(func(s metrics.Summary) float64 { return s.MAE })
}

// Result is the outcome of Tune.
type Result struct {
	// Model は推定器の名前（model.NameOf）
	Model      string
	Resampling Resampling
	Selection  Selection

	Rows []CVRow
	// Selected は Rows 内の選択された行の位置
	Selected   int
	BestParams Params

	// Final は選択されたパラメータで学習データ全体に学習し直した推定器
	Final model.TunableRegressor

	// HasTest が false のときテスト区分は評価されていない
	HasTest         bool
	Test            metrics.Summary
	TestPredictions []float64

	Duration time.Duration
}

// SelectedRow returns the CV row of the selected grid point.
func (r *Result) SelectedRow() CVRow { return r.Rows[r.Selected] }

// Failures returns the grid points that were excluded because a resample
// failed.
func (r *Result) Failures() []CVRow {
	var out []CVRow
	for _, row := range r.Rows {
		if row.Failed() {
			out = append(out, row)
		}
	}
	return out
}

type rankItem struct {
	rmse  float64
	index int
}

func (a rankItem) Less(than btree.Item) bool {
	b := than.(rankItem)
	if a.rmse != b.rmse {
		return a.rmse < b.rmse
	}
	return a.index < b.index
}

// Ranking returns the successful grid points ordered by mean resampled
// RMSE, ties broken by grid order.
func (r *Result) Ranking() []CVRow {
	return rank(r.Rows)
}

func rank(rows []CVRow) []CVRow {
	tree := btree.New(8)
	for _, row := range rows {
		if row.Failed() || math.IsNaN(row.Mean.RMSE) {
			continue
		}
		tree.ReplaceOrInsert(rankItem{rmse: row.Mean.RMSE, index: row.Index})
	}
	out := make([]CVRow, 0, tree.Len())
	tree.Ascend(func(i btree.Item) bool {
		out = append(out, rows[i.(rankItem).index])
		return true
	})
	return out
}
