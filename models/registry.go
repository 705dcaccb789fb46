// Package models maps the short model names used in experiment files to
// estimator constructors and default tuning grids.
package models

import (
	"sort"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/linear"
	"github.com/YuminosukeSato/apmkit/neighbors"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pls"
	"github.com/YuminosukeSato/apmkit/tune"
)

// Spec describes a registered model.
type Spec struct {
	Name        string
	Description string
	New         func() model.TunableRegressor
	// Grid returns the default grid for a training set with the given number
	// of predictors and rows. Candidates are listed simplest first.
	Grid func(features, rows int) tune.Grid
}

// penalties は大きい（単純な）順
var penalties = tune.FloatValues(1, 0.5, 0.2, 0.1, 0.05, 0.02, 0.01, 0.005, 0.002, 0.001)

func components(limit, features, rows int) tune.Grid {
	hi := min(limit, features, rows-1)
	if hi < 1 {
		hi = 1
	}
	return tune.Grid{"ncomp": tune.IntRange(1, hi)}
}

var registry = map[string]Spec{
	"lm": {
		Name:        "lm",
		Description: "ordinary least squares",
		New:         func() model.TunableRegressor { return linear.NewLinearRegression() },
		Grid:        func(int, int) tune.Grid { return tune.Grid{} },
	},
	"rlm": {
		Name:        "rlm",
		Description: "Huber M-estimation by iteratively reweighted least squares",
		New:         func() model.TunableRegressor { return linear.NewRobustRegression() },
		Grid:        func(int, int) tune.Grid { return tune.Grid{} },
	},
	"ridge": {
		Name:        "ridge",
		Description: "ridge regression on standardized predictors",
		New:         func() model.TunableRegressor { return linear.NewRidge() },
		Grid: func(int, int) tune.Grid {
			return tune.Grid{"lambda": append(append([]interface{}{}, penalties...), 0.0)}
		},
	},
	"lasso": {
		Name:        "lasso",
		Description: "lasso by coordinate descent",
		New:         func() model.TunableRegressor { return linear.NewLasso() },
		Grid:        func(int, int) tune.Grid { return tune.Grid{"lambda": penalties} },
	},
	"enet": {
		Name:        "enet",
		Description: "elastic net by coordinate descent",
		New:         func() model.TunableRegressor { return linear.NewElasticNet(linear.WithAlpha(0.5)) },
		Grid: func(int, int) tune.Grid {
			return tune.Grid{"alpha": tune.FloatValues(1, 0.5, 0.1), "lambda": penalties}
		},
	},
	"pls": {
		Name:        "pls",
		Description: "partial least squares (NIPALS)",
		New:         func() model.TunableRegressor { return pls.NewPLSRegression() },
		Grid:        func(p, n int) tune.Grid { return components(20, p, n) },
	},
	"pcr": {
		Name:        "pcr",
		Description: "principal component regression",
		New:         func() model.TunableRegressor { return linear.NewPCR() },
		Grid:        func(p, n int) tune.Grid { return components(35, p, n) },
	},
	"knn": {
		Name:        "knn",
		Description: "k nearest neighbours",
		New:         func() model.TunableRegressor { return neighbors.NewKNNRegressor() },
		Grid: func(_, n int) tune.Grid {
			var ks []int
			for k := 21; k >= 1; k -= 2 {
				if k < n {
					ks = append(ks, k)
				}
			}
			return tune.Grid{"k": tune.IntValues(ks...)}
		},
	},
}

// Lookup はモデル名から Spec を返す
func Lookup(name string) (Spec, error) {
	s, ok := registry[name]
	if !ok {
		return Spec{}, errors.NewValidationError("model", "unknown model", name)
	}
	return s, nil
}

// New returns a fresh estimator for name.
func New(name string) (model.TunableRegressor, error) {
	s, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.New(), nil
}

// Names returns the registered model names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
