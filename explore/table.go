package explore

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is a header plus rows of preformatted cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Render は罫線付きのテキスト表を w に書き出す
func (t Table) Render(w io.Writer) error {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(t.Headers...).
		Rows(t.Rows...)
	if t.Title != "" {
		if _, err := fmt.Fprintln(w, t.Title); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

// Num formats a float for a table cell; NaN prints as NA.
func Num(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// DescribeTable は Describe の結果を表にする
func DescribeTable(rows []ColumnSummary) Table {
	t := Table{Title: "Predictors", Headers: []string{"name", "n", "missing", "mean", "sd", "min", "max", "skewness"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Name, strconv.Itoa(r.N), strconv.Itoa(r.Missing),
			Num(r.Mean), Num(r.SD), Num(r.Min), Num(r.Max), Num(r.Skewness),
		})
	}
	return t
}

// MissingTable は欠損のある列だけを多い順に並べた表にする
func MissingTable(rep MissingReport) Table {
	t := Table{
		Title:   fmt.Sprintf("Missing values (%d of %d rows incomplete)", rep.IncompleteRows, rep.Rows),
		Headers: []string{"name", "missing", "fraction"},
	}
	for _, c := range rep.MostMissing() {
		if c.Missing == 0 {
			continue
		}
		t.Rows = append(t.Rows, []string{c.Name, strconv.Itoa(c.Missing), Num(c.Fraction)})
	}
	return t
}

// ClassMissingTable は分類データのクラス別の欠損パターンを表にする
func ClassMissingTable(rep MissingReport) Table {
	t := Table{Title: "Missing values by class", Headers: []string{"class", "rows", "incomplete"}}
	for _, c := range rep.ByClass {
		t.Rows = append(t.Rows, []string{c.Class, strconv.Itoa(c.Rows), strconv.Itoa(c.IncompleteRows)})
	}
	return t
}

// NZVTable は NZV 判定の表を作る
func NZVTable(rows []NZVRow) Table {
	t := Table{Title: "Near-zero variance", Headers: []string{"name", "freq_ratio", "percent_unique", "zero_var", "nzv"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Name, Num(r.FreqRatio), Num(r.PercentUnique),
			strconv.FormatBool(r.ZeroVar), strconv.FormatBool(r.NZV),
		})
	}
	return t
}

// CorrelationTable は相関の強いペアを表にする
func CorrelationTable(pairs []CorrelatedPair) Table {
	t := Table{Title: "Highly correlated pairs", Headers: []string{"a", "b", "r"}}
	for _, p := range pairs {
		t.Rows = append(t.Rows, []string{p.A, p.B, Num(p.R)})
	}
	return t
}
