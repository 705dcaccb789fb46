package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ReadOptions controls how a CSV file becomes a Frame.
type ReadOptions struct {
	// Response is the response column name. Empty means the last column.
	Response string
	// Categorical forces these columns to be read as string levels.
	Categorical []string
	// Drop lists columns to ignore (row identifiers and the like).
	Drop []string
	// NAStrings are the cell values read as missing. Defaults to "", "NA", "NaN", "?".
	NAStrings []string
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
}

func (o ReadOptions) isNA(s string) bool {
	na := o.NAStrings
	if len(na) == 0 {
		na = []string{"", "NA", "NaN", "?"}
	}
	for _, v := range na {
		if s == v {
			return true
		}
	}
	return false
}

// LoadCSV はファイルから Frame を読み込む
func LoadCSV(path string, opts ReadOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	f, err := ReadCSV(bufio.NewReader(file), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return f, nil
}

// ReadCSV はヘッダ行付きのCSVを Frame に変換する
//
// 数値として解釈できない値を含む列はカテゴリ列として扱う。
// 欠損値は数値列では NaN、カテゴリ列では空文字列になる。
func ReadCSV(r io.Reader, opts ReadOptions) (*Frame, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "ReadCSV: missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "ReadCSV: header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "ReadCSV")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ReadCSV: no data rows")
	}

	respIdx := len(header) - 1
	if opts.Response != "" {
		respIdx = -1
		for i, h := range header {
			if h == opts.Response {
				respIdx = i
				break
			}
		}
		if respIdx < 0 {
			return nil, errors.NewValueError("ReadCSV", "response column "+opts.Response+" not found")
		}
	}

	forced := make(map[string]bool, len(opts.Categorical))
	for _, c := range opts.Categorical {
		forced[c] = true
	}
	dropped := make(map[string]bool, len(opts.Drop))
	for _, c := range opts.Drop {
		dropped[c] = true
	}

	column := func(j int) []string {
		col := make([]string, len(records))
		for i, rec := range records {
			col[i] = strings.TrimSpace(rec[j])
		}
		return col
	}

	frame := &Frame{ResponseName: header[respIdx]}
	var numericCols [][]float64
	for j, name := range header {
		if dropped[name] {
			continue
		}
		col := column(j)
		values, numeric := parseNumeric(col, opts)
		if forced[name] {
			numeric = false
		}

		if j == respIdx {
			if numeric {
				frame.Y = values
			} else {
				frame.Labels = levelsOrMissing(col, opts)
			}
			continue
		}
		if numeric {
			frame.NumericNames = append(frame.NumericNames, name)
			numericCols = append(numericCols, values)
		} else {
			frame.CategoricalNames = append(frame.CategoricalNames, name)
			frame.Categorical = append(frame.Categorical, levelsOrMissing(col, opts))
		}
	}

	if len(numericCols) > 0 {
		frame.X = mat.NewDense(len(records), len(numericCols), nil)
		for j, col := range numericCols {
			frame.X.SetCol(j, col)
		}
	}
	return frame, nil
}

func parseNumeric(col []string, opts ReadOptions) ([]float64, bool) {
	out := make([]float64, len(col))
	for i, s := range col {
		if opts.isNA(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func levelsOrMissing(col []string, opts ReadOptions) []string {
	out := make([]string, len(col))
	for i, s := range col {
		if !opts.isNA(s) {
			out[i] = s
		}
	}
	return out
}

// WriteCSV は Frame をヘッダ付きCSVとして書き出す
// 列順は数値列、カテゴリ列、応答の順。欠損は NA になる
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	header := append(append(append([]string(nil), f.NumericNames...), f.CategoricalNames...), f.ResponseName)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "WriteCSV")
	}

	record := make([]string, len(header))
	for i := 0; i < f.Rows(); i++ {
		k := 0
		for j := range f.NumericNames {
			record[k] = formatFloat(f.X.At(i, j))
			k++
		}
		for _, col := range f.Categorical {
			record[k] = naIfEmpty(col[i])
			k++
		}
		if f.Y != nil {
			record[k] = formatFloat(f.Y[i])
		} else {
			record[k] = naIfEmpty(f.Labels[i])
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "WriteCSV")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "WriteCSV")
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func naIfEmpty(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}
