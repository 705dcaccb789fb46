package errors

import (
	"math"
)

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckFinite returns ErrMissingValues wrapped with the operation name when
// the matrix holds a NaN, and a NumericalInstabilityError when it holds an Inf.
// Estimators that cannot handle missing predictors call it at the top of Fit
// and Predict.
func CheckFinite(operation string, m interface {
	At(int, int) float64
	Dims() (int, int)
}) error {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) {
				return NewModelError(operation, "missing value", ErrMissingValues)
			}
			if math.IsInf(v, 0) {
				return NewNumericalInstabilityError(operation, []float64{v}, 0)
			}
		}
	}
	return nil
}

// SoftThreshold is the lasso shrinkage operator S(z, g) = sign(z)·max(|z|−g, 0).
func SoftThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}
