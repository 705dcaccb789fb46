// Package plot draws the diagnostic charts of a modeling run with
// gonum/plot: observed against predicted, residuals, tuning profiles,
// predictor histograms and importance bars.
package plot

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/tune"
)

// DefaultSize is the width and height used by Save.
const DefaultSize = 5 * vg.Inch

// Save writes p to path; the format follows the extension (.png, .svg or
// .pdf).
func Save(p *plot.Plot, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg", ".pdf":
	default:
		return errors.NewValidationError("path", "extension must be .png, .svg or .pdf", path)
	}
	if err := p.Save(DefaultSize, DefaultSize, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

func checkPair(op string, observed, predicted []float64) error {
	if len(observed) == 0 {
		return errors.NewModelError(op, "nothing to plot", errors.ErrEmptyData)
	}
	if len(observed) != len(predicted) {
		return errors.NewDimensionError(op, len(observed), len(predicted), 0)
	}
	return nil
}

// ObservedVsPredicted は観測値（y 軸）と予測値（x 軸）の散布図に y = x の線を重ねる
func ObservedVsPredicted(observed, predicted []float64, title string) (*plot.Plot, error) {
	if err := checkPair("plot.ObservedVsPredicted", observed, predicted); err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Observed"

	pts := make(plotter.XYs, len(observed))
	for i := range observed {
		pts[i] = plotter.XY{X: predicted[i], Y: observed[i]}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter")
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = plotutil.Color(0)

	lo := math.Min(floats.Min(observed), floats.Min(predicted))
	hi := math.Max(floats.Max(observed), floats.Max(predicted))
	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, errors.Wrap(err, "identity line")
	}
	l.LineStyle.Color = plotutil.Color(1)
	l.LineStyle.Dashes = plotutil.Dashes(1)

	p.Add(s, l, plotter.NewGrid())
	return p, nil
}

// ResidualsVsPredicted は残差（観測 − 予測）と予測値の散布図に 0 の線を重ねる
func ResidualsVsPredicted(observed, predicted []float64, title string) (*plot.Plot, error) {
	if err := checkPair("plot.ResidualsVsPredicted", observed, predicted); err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Residual"

	pts := make(plotter.XYs, len(observed))
	for i := range observed {
		pts[i] = plotter.XY{X: predicted[i], Y: observed[i] - predicted[i]}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter")
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = plotutil.Color(0)

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.LineStyle.Color = plotutil.Color(1)
	zero.LineStyle.Dashes = plotutil.Dashes(1)

	p.Add(s, zero, plotter.NewGrid())
	return p, nil
}

// Histogram draws the distribution of one predictor; NaN values are skipped.
func Histogram(values []float64, bins int, title string) (*plot.Plot, error) {
	vals := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, errors.NewModelError("plot.Histogram", "no finite values", errors.ErrEmptyData)
	}
	if bins <= 0 {
		// Sturges
		bins = int(math.Ceil(math.Log2(float64(len(vals))))) + 1
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Count"
	h, err := plotter.NewHist(vals, bins)
	if err != nil {
		return nil, errors.Wrap(err, "histogram")
	}
	h.FillColor = plotutil.Color(2)
	p.Add(h)
	return p, nil
}

// Importance draws horizontal bars of the topK largest importances, the most
// important at the top. topK <= 0 keeps every predictor.
func Importance(names []string, importance []float64, topK int, title string) (*plot.Plot, error) {
	if len(names) != len(importance) {
		return nil, errors.NewDimensionError("plot.Importance", len(names), len(importance), 0)
	}
	if len(names) == 0 {
		return nil, errors.NewModelError("plot.Importance", "nothing to plot", errors.ErrEmptyData)
	}
	order := TopK(importance, topK)

	// 下から上へ描かれるので重要度の低い順に並べる
	vals := make(plotter.Values, len(order))
	labels := make([]string, len(order))
	for i, j := range order {
		k := len(order) - 1 - i
		vals[k] = importance[j]
		labels[k] = names[j]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Importance"
	bars, err := plotter.NewBarChart(vals, vg.Points(10))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)
	return p, nil
}

// TopK returns the indices of the k largest values, largest first; ties keep
// index order.
func TopK(values []float64, k int) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })
	if k > 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// TuningProfile plots the mean resampled RMSE of res against the parameter
// x, one line per value of group (group may be empty). Failed grid points
// are left out.
func TuningProfile(res *tune.Result, x, group string) (*plot.Plot, error) {
	if res == nil || len(res.Rows) == 0 {
		return nil, errors.NewModelError("plot.TuningProfile", "no tuning results", errors.ErrEmptyData)
	}

	type series struct {
		label string
		pts   plotter.XYs
	}
	var order []string
	lines := make(map[string]*series)
	for _, row := range res.Rows {
		if row.Failed() {
			continue
		}
		xv, ok := numeric(row.Params[x])
		if !ok {
			return nil, errors.NewValidationError("x", "parameter is missing or not numeric", x)
		}
		label := ""
		if group != "" {
			label = fmt.Sprintf("%s=%v", group, row.Params[group])
		}
		s, ok := lines[label]
		if !ok {
			s = &series{label: label}
			lines[label] = s
			order = append(order, label)
		}
		s.pts = append(s.pts, plotter.XY{X: xv, Y: row.Mean.RMSE})
	}
	if len(order) == 0 {
		return nil, errors.NewModelError("plot.TuningProfile", "every grid point failed", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: resampled RMSE", res.Model)
	p.X.Label.Text = x
	p.Y.Label.Text = "RMSE (cross-validation)"
	for i, label := range order {
		s := lines[label]
		sort.Slice(s.pts, func(a, b int) bool { return s.pts[a].X < s.pts[b].X })
		l, pts, err := plotter.NewLinePoints(s.pts)
		if err != nil {
			return nil, errors.Wrap(err, "profile line")
		}
		l.LineStyle.Color = plotutil.Color(i)
		pts.GlyphStyle.Color = plotutil.Color(i)
		pts.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(l, pts)
		if label != "" {
			p.Legend.Add(label, l, pts)
		}
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

func numeric(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
