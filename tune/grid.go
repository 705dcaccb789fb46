// Package tune implements the tune-fit-evaluate workflow: a hyperparameter
// grid is scored by repeated k-fold cross-validation, one grid point is
// selected, refit on the whole training partition and evaluated on the test
// partition.
package tune

import (
	"sort"

	"github.com/YuminosukeSato/apmkit/core/model"
)

// Params is one grid point: parameter name to value, as passed to SetParams.
type Params map[string]interface{}

// String は "a=1, b=0.5" 形式（名前順）で返す
func (p Params) String() string {
	return model.FormatParams(p)
}

// Grid maps each parameter name to its candidate values, in the order they
// should be tried.
type Grid map[string][]interface{}

// Names はパラメータ名をソートして返す
func (g Grid) Names() []string {
	names := make([]string, 0, len(g))
	for n := range g {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Size is the number of grid points ExpandGrid produces.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 1
	}
	n := 1
	for _, vals := range g {
		n *= len(vals)
	}
	return n
}

// ExpandGrid returns the cartesian product of the grid. Parameter names are
// taken in sorted order and the last name varies fastest, so the order is a
// pure function of the grid. An empty grid yields a single empty point.
func ExpandGrid(g Grid) []Params {
	names := g.Names()
	out := make([]Params, 0, g.Size())
	if g.Size() == 0 {
		return out
	}

	idx := make([]int, len(names))
	for {
		p := make(Params, len(names))
		for i, n := range names {
			p[n] = g[n][idx[i]]
		}
		out = append(out, p)

		// 最後の名前から繰り上げる
		i := len(names) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[names[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// FloatValues is a convenience for building grids of float64 values.
func FloatValues(vals ...float64) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// IntValues is a convenience for building grids of int values.
func IntValues(vals ...int) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// IntRange returns the ints from..to inclusive as grid values.
func IntRange(from, to int) []interface{} {
	out := make([]interface{}, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}
