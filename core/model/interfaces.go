// Package model provides the interfaces shared by every estimator and
// transformer in apmkit, plus the small amount of state they have in common.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
}

// TunableRegressor is what the tuner needs: a regressor whose hyperparameters
// can be set from a grid point and which can produce unfitted copies of
// itself for each resample.
type TunableRegressor interface {
	Estimator
	SKLearnCompatible
}

// Importancer is implemented by fitted models that can rank their predictors.
// Values are non-negative; larger means more important.
type Importancer interface {
	FeatureImportances() ([]float64, error)
}

// Named lets an estimator report a short name for logs and run records.
type Named interface {
	Name() string
}

// NameOf returns the estimator's Name when it has one, otherwise its type.
func NameOf(v interface{}) string {
	if n, ok := v.(Named); ok {
		return n.Name()
	}
	return typeName(v)
}
