package explore

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/apmkit/dataset"
)

// MissingColumn is the number of missing entries in one predictor.
type MissingColumn struct {
	Name     string  `json:"name"`
	Missing  int     `json:"missing"`
	Fraction float64 `json:"fraction"`
}

// ClassMissing is the missing-value pattern within one response class.
type ClassMissing struct {
	Class string `json:"class"`
	Rows  int    `json:"rows"`
	// IncompleteRows は欠損を 1 つ以上含む行数
	IncompleteRows int `json:"incomplete_rows"`
	// Missing は列ごとの欠損数（MissingReport.Columns と同じ順）
	Missing []int `json:"missing"`
}

// MissingReport summarizes missing values in every predictor, numeric and
// categorical. For classification frames it also breaks the counts down by
// class, which shows when missingness is informative about the outcome.
type MissingReport struct {
	Rows           int             `json:"rows"`
	IncompleteRows int             `json:"incomplete_rows"`
	Columns        []MissingColumn `json:"columns"`
	ByClass        []ClassMissing  `json:"by_class,omitempty"`
}

// Missing は欠損値の報告を作成する
func Missing(f *dataset.Frame) MissingReport {
	n := f.Rows()
	names, isMissing := missingMatrix(f)

	rep := MissingReport{Rows: n, Columns: make([]MissingColumn, len(names))}
	for j, name := range names {
		c := MissingColumn{Name: name}
		for i := 0; i < n; i++ {
			if isMissing[j][i] {
				c.Missing++
			}
		}
		if n > 0 {
			c.Fraction = float64(c.Missing) / float64(n)
		}
		rep.Columns[j] = c
	}

	incomplete := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := range names {
			if isMissing[j][i] {
				incomplete[i] = true
				break
			}
		}
		if incomplete[i] {
			rep.IncompleteRows++
		}
	}

	if f.IsClassification() {
		byClass := make(map[string]*ClassMissing)
		for i, label := range f.Labels {
			cm, ok := byClass[label]
			if !ok {
				cm = &ClassMissing{Class: label, Missing: make([]int, len(names))}
				byClass[label] = cm
			}
			cm.Rows++
			if incomplete[i] {
				cm.IncompleteRows++
			}
			for j := range names {
				if isMissing[j][i] {
					cm.Missing[j]++
				}
			}
		}
		for _, cm := range byClass {
			rep.ByClass = append(rep.ByClass, *cm)
		}
		sort.Slice(rep.ByClass, func(a, b int) bool { return rep.ByClass[a].Class < rep.ByClass[b].Class })
	}
	return rep
}

// MostMissing returns the columns sorted by decreasing missing count; ties
// keep column order.
func (r MissingReport) MostMissing() []MissingColumn {
	out := append([]MissingColumn(nil), r.Columns...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Missing > out[b].Missing })
	return out
}

func missingMatrix(f *dataset.Frame) ([]string, [][]bool) {
	n := f.Rows()
	var names []string
	var out [][]bool
	if f.X != nil {
		_, c := f.X.Dims()
		for j := 0; j < c; j++ {
			col := make([]bool, n)
			for i := 0; i < n; i++ {
				col[i] = math.IsNaN(f.X.At(i, j))
			}
			names = append(names, f.NumericNames[j])
			out = append(out, col)
		}
	}
	for j, levels := range f.Categorical {
		col := make([]bool, n)
		for i, v := range levels {
			col[i] = v == ""
		}
		names = append(names, f.CategoricalNames[j])
		out = append(out, col)
	}
	return names, out
}
