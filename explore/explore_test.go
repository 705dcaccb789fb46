package explore

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/apmkit/dataset"
	"github.com/YuminosukeSato/apmkit/preprocessing"
)

func TestSkewness(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"symmetric", []float64{1, 2, 3, 4, 5}, 0},
		// m2 = 3, m3 = 6
		{"right skewed", []float64{0, 0, 0, 4}, 6 / math.Pow(3, 1.5)},
		{"ignores NaN", []float64{1, math.NaN(), 2, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Skewness(tt.x), 1e-12)
		})
	}
	assert.True(t, math.IsNaN(Skewness([]float64{1, 2})))
	assert.True(t, math.IsNaN(Skewness([]float64{3, 3, 3})))
	assert.Less(t, Skewness([]float64{0, 4, 4, 4}), 0.0)
}

func frame() *dataset.Frame {
	nan := math.NaN()
	return &dataset.Frame{
		NumericNames: []string{"a", "b", "c"},
		X: mat.NewDense(6, 3, []float64{
			1, 2, 0,
			2, 4, 0,
			3, nan, 0,
			4, 8, 0,
			5, 10, 0,
			6, 12, 1,
		}),
		CategoricalNames: []string{"leaf"},
		Categorical:      [][]string{{"x", "", "y", "x", "", "x"}},
		ResponseName:     "class",
		Labels:           []string{"p", "p", "q", "q", "q", "p"},
	}
}

func TestDescribe(t *testing.T) {
	rows := Describe(frame())
	require.Len(t, rows, 3)

	a := rows[0]
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, 6, a.N)
	assert.Equal(t, 3.5, a.Mean)
	assert.Equal(t, 1.0, a.Min)
	assert.Equal(t, 6.0, a.Max)
	assert.InDelta(t, math.Sqrt(3.5), a.SD, 1e-12)
	assert.InDelta(t, 0, a.Skewness, 1e-12)

	b := rows[1]
	assert.Equal(t, 5, b.N)
	assert.Equal(t, 1, b.Missing)

	assert.Greater(t, SkewnessTable(frame())["c"], 1.0)
}

func TestMissing(t *testing.T) {
	rep := Missing(frame())
	assert.Equal(t, 6, rep.Rows)
	assert.Equal(t, 3, rep.IncompleteRows)
	require.Len(t, rep.Columns, 4)
	assert.Equal(t, MissingColumn{Name: "b", Missing: 1, Fraction: 1.0 / 6}, rep.Columns[1])
	assert.Equal(t, 2, rep.Columns[3].Missing)

	most := rep.MostMissing()
	assert.Equal(t, "leaf", most[0].Name)
	assert.Equal(t, "b", most[1].Name)

	require.Len(t, rep.ByClass, 2)
	assert.Equal(t, ClassMissing{Class: "p", Rows: 3, IncompleteRows: 1, Missing: []int{0, 0, 0, 1}}, rep.ByClass[0])
	assert.Equal(t, ClassMissing{Class: "q", Rows: 3, IncompleteRows: 2, Missing: []int{0, 1, 0, 1}}, rep.ByClass[1])
}

func TestNearZeroVarReport(t *testing.T) {
	rows := NearZeroVarReport(frame(), preprocessing.DefaultFreqCut, preprocessing.DefaultUniqueCut)
	require.Len(t, rows, 4)
	assert.Equal(t, "c", rows[2].Name)
	assert.Equal(t, 5.0, rows[2].FreqRatio)
	assert.False(t, rows[2].ZeroVar)
	assert.Equal(t, "leaf", rows[3].Name)
	// x が 3 回、y が 1 回
	assert.Equal(t, 3.0, rows[3].FreqRatio)

	strict := NearZeroVarReport(frame(), 4, 50)
	assert.Equal(t, []string{"c"}, Flagged(strict))
}

func TestCorrelations(t *testing.T) {
	f := frame()
	names, corr := CorrelationMatrix(f)
	assert.Equal(t, []string{"a", "b", "c"}, names)
	// b = 2a（欠損行を除いて）
	assert.InDelta(t, 1, corr.At(0, 1), 1e-12)

	pairs := HighCorrelations(f, 0.9)
	require.NotEmpty(t, pairs)
	assert.Equal(t, "a", pairs[0].A)
	assert.Equal(t, "b", pairs[0].B)

	kept, dropped := CorrelationPreview(f, 0.9)
	assert.Len(t, dropped, 1)
	assert.Len(t, kept, 2)
	assert.Contains(t, kept, "c")
}

func TestTablesRender(t *testing.T) {
	f := frame()
	var buf bytes.Buffer
	require.NoError(t, DescribeTable(Describe(f)).Render(&buf))
	require.NoError(t, MissingTable(Missing(f)).Render(&buf))
	require.NoError(t, ClassMissingTable(Missing(f)).Render(&buf))
	require.NoError(t, NZVTable(NearZeroVarReport(f, 19, 10)).Render(&buf))
	require.NoError(t, CorrelationTable(HighCorrelations(f, 0.5)).Render(&buf))

	out := buf.String()
	for _, want := range []string{"Predictors", "skewness", "leaf", "Missing values by class", "freq_ratio", "Highly correlated pairs"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, "NA", Num(math.NaN()))
	assert.Equal(t, "0.3333", Num(1.0/3))
}
