package linear

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData はベンチマーク用のデータを生成する
func createBenchmarkData(rows, cols int) (*mat.Dense, *mat.Dense) {
	// シードを固定して再現性を確保
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	// y = 1 + Σ 0.5(j+1) x_j + 小さなノイズ
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * float64(j+1) * 0.5
		}
		sum += (rng.Float64() - 0.5) * 0.1
		y.Set(i, 0, sum)
	}

	return X, y
}

var benchSizes = []struct {
	name string
	rows int
	cols int
}{
	{"Small_100x10", 100, 10},
	{"Medium_500x20", 500, 20},
	{"Large_2000x50", 2000, 50},
}

func benchmarkFit(b *testing.B, newModel func() interface {
	Fit(X, y mat.Matrix) error
}) {
	for _, size := range benchSizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := newModel().Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLinearRegressionFit はQR分解による最小二乗のベンチマーク
func BenchmarkLinearRegressionFit(b *testing.B) {
	benchmarkFit(b, func() interface{ Fit(X, y mat.Matrix) error } { return NewLinearRegression() })
}

func BenchmarkRidgeFit(b *testing.B) {
	benchmarkFit(b, func() interface{ Fit(X, y mat.Matrix) error } { return NewRidge(WithLambda(0.1)) })
}

func BenchmarkElasticNetFit(b *testing.B) {
	benchmarkFit(b, func() interface{ Fit(X, y mat.Matrix) error } {
		return NewElasticNet(WithAlpha(0.5), WithLambda(0.01))
	})
}

func BenchmarkRobustRegressionFit(b *testing.B) {
	benchmarkFit(b, func() interface{ Fit(X, y mat.Matrix) error } { return NewRobustRegression() })
}
