package dataset

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

const glassLike = `RI,Na,Kind,Type
1.52,13.6,float,A
1.51,NA,float,A
1.53,13.9,nonfloat,B
1.52,12.8,NA,B
`

func TestReadCSV(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(glassLike), ReadOptions{Response: "Type"})
	require.NoError(t, err)

	assert.Equal(t, []string{"RI", "Na"}, f.NumericNames)
	assert.Equal(t, []string{"Kind"}, f.CategoricalNames)
	assert.True(t, f.IsClassification())
	assert.Equal(t, []string{"A", "A", "B", "B"}, f.Labels)
	assert.Equal(t, 4, f.Rows())
	assert.True(t, math.IsNaN(f.X.At(1, 1)))
	assert.Equal(t, "", f.Categorical[0][3])

	_, err = f.Response()
	assert.Error(t, err)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), ReadOptions{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = ReadCSV(strings.NewReader("a,b\n"), ReadOptions{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = ReadCSV(strings.NewReader("a,b\n1,2\n"), ReadOptions{Response: "zzz"})
	assert.Error(t, err)
}

func TestReadCSVForcedCategorical(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("grade,y\n1,0.5\n2,0.7\n1,0.1\n"), ReadOptions{Categorical: []string{"grade"}})
	require.NoError(t, err)
	assert.Empty(t, f.NumericNames)
	assert.Equal(t, []string{"1", "2", "1"}, f.Categorical[0])
	assert.Equal(t, []float64{0.5, 0.7, 0.1}, f.Y)
}

func TestDummies(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(glassLike), ReadOptions{Response: "Type"})
	require.NoError(t, err)

	X, names := f.Dummies(true)
	assert.Equal(t, []string{"RI", "Na", "Kindnonfloat"}, names)
	assert.Equal(t, 0.0, X.At(0, 2))
	assert.Equal(t, 1.0, X.At(2, 2))
	assert.True(t, math.IsNaN(X.At(3, 2)))

	_, names = f.Dummies(false)
	assert.Equal(t, []string{"RI", "Na", "Kindfloat", "Kindnonfloat"}, names)
}

func TestDropIncompleteAndSelect(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(glassLike), ReadOptions{Response: "Type"})
	require.NoError(t, err)

	complete := f.DropIncomplete()
	assert.Equal(t, 2, complete.Rows())
	assert.Equal(t, []string{"A", "B"}, complete.Labels)

	sel, err := f.Select([]string{"Na", "Kind"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Na"}, sel.NumericNames)
	assert.Equal(t, []string{"Kind"}, sel.CategoricalNames)
	assert.Equal(t, 13.6, sel.X.At(0, 0))

	_, err = f.Select([]string{"nope"})
	assert.Error(t, err)
}

func TestCreateDataPartitionIsStratifiedAndDeterministic(t *testing.T) {
	y := make([]float64, 100)
	for i := range y {
		y[i] = float64(i)
	}

	a, err := CreateDataPartition(y, 0.8, 5, 42)
	require.NoError(t, err)
	b, err := CreateDataPartition(y, 0.8, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// 5 groups of 20 → 16 per group
	assert.Len(t, a, 80)
	perGroup := make([]int, 5)
	for _, i := range a {
		perGroup[i/20]++
	}
	for _, c := range perGroup {
		assert.Equal(t, 16, c)
	}

	c, err := CreateDataPartition(y, 0.8, 5, 7)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = CreateDataPartition(y, 1.0, 5, 1)
	assert.Error(t, err)
}

func TestCreateClassPartition(t *testing.T) {
	labels := []string{"a", "a", "a", "a", "b", "b", "b", "b", "b", "b"}
	idx, err := CreateClassPartition(labels, 0.5, 1)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, i := range idx {
		counts[labels[i]]++
	}
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 3, counts["b"])
}

func TestTrainTestSplit(t *testing.T) {
	f, err := Friedman1(120, 1, 3)
	require.NoError(t, err)

	s, err := TrainTestSplit(f, 0.75, 3)
	require.NoError(t, err)

	nTrain, p := s.XTrain.Dims()
	nTest, _ := s.XTest.Dims()
	assert.Equal(t, 10, p)
	assert.Equal(t, 120, nTrain+nTest)
	assert.Equal(t, nTrain, s.YTrain.Len())
	assert.Equal(t, nTest, s.YTest.Len())
	assert.Equal(t, f.Y[s.TestIndex[0]], s.YTest.AtVec(0))
}

func TestFriedman1(t *testing.T) {
	f, err := Friedman1(50, 0, 11)
	require.NoError(t, err)

	r, c := f.X.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 10, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := f.X.At(i, j)
			assert.True(t, v >= 0 && v <= 1)
		}
		// sd = 0 なので応答は平均関数そのもの
		assert.InDelta(t, Friedman1Mean(f.X.RawRowView(i)), f.Y[i], 1e-12)
	}

	g, err := Friedman1(50, 0, 11)
	require.NoError(t, err)
	assert.Equal(t, f.Y, g.Y)

	_, err = Friedman1(0, 1, 1)
	assert.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	f, err := Friedman1(5, 1, 2)
	require.NoError(t, err)
	f.X.Set(0, 0, math.NaN())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))

	g, err := ReadCSV(&buf, ReadOptions{Response: "y"})
	require.NoError(t, err)
	assert.Equal(t, f.NumericNames, g.NumericNames)
	assert.True(t, math.IsNaN(g.X.At(0, 0)))
	assert.InDelta(t, f.Y[4], g.Y[4], 1e-12)
}

func TestRegistry(t *testing.T) {
	ds := Registered()
	require.Len(t, ds, 7)
	assert.Equal(t, "chemical-manufacturing", ds[0].Name)

	d, err := Lookup("friedman1")
	require.NoError(t, err)
	f, err := d.Load("", 1)
	require.NoError(t, err)
	assert.Equal(t, 200, f.Rows())

	_, err = Lookup("iris")
	assert.Error(t, err)
}
