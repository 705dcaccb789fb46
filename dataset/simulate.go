package dataset

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Friedman1 simulates the Friedman #1 benchmark:
//
//	y = 10 sin(π x1 x2) + 20 (x3 - 0.5)² + 10 x4 + 5 x5 + ε,  ε ~ N(0, sd²)
//
// with ten U(0, 1) predictors X1..X10, of which X6..X10 are noise.
func Friedman1(n int, sd float64, seed uint64) (*Frame, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("n", "must be positive", n)
	}
	if sd < 0 {
		return nil, errors.NewValidationError("sd", "must be non-negative", sd)
	}

	const p = 10
	src := newRand(seed)
	unif := distuv.Uniform{Min: 0, Max: 1, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: sd, Src: src}

	X := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, unif.Rand())
		}
		y[i] = Friedman1Mean(X.RawRowView(i))
		if sd > 0 {
			y[i] += noise.Rand()
		}
	}

	names := make([]string, p)
	for j := range names {
		names[j] = fmt.Sprintf("X%d", j+1)
	}
	return &Frame{NumericNames: names, X: X, ResponseName: "y", Y: y}, nil
}

// Friedman1Mean は雑音なしの Friedman #1 の平均関数
func Friedman1Mean(x []float64) float64 {
	return 10*math.Sin(math.Pi*x[0]*x[1]) + 20*(x[2]-0.5)*(x[2]-0.5) + 10*x[3] + 5*x[4]
}
