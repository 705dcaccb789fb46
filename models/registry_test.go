package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/apmkit/core/model"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/tune"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"enet", "knn", "lasso", "lm", "pcr", "pls", "ridge", "rlm"}, Names())

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			est, err := New(name)
			require.NoError(t, err)
			assert.Equal(t, name, model.NameOf(est))

			spec, err := Lookup(name)
			require.NoError(t, err)
			assert.NotEmpty(t, spec.Description)

			// 既定グリッドの全点がそのまま SetParams に渡せる
			for _, p := range tune.ExpandGrid(spec.Grid(10, 100)) {
				c := est.Clone().(model.TunableRegressor)
				assert.NoError(t, c.SetParams(p), "%s %v", name, p)
			}
		})
	}

	_, err := New("mars")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestComponentGridIsCapped(t *testing.T) {
	spec, err := Lookup("pls")
	require.NoError(t, err)
	assert.Equal(t, tune.IntRange(1, 4), spec.Grid(4, 100)["ncomp"])
	assert.Equal(t, tune.IntRange(1, 9), spec.Grid(50, 10)["ncomp"])
	assert.Equal(t, tune.IntRange(1, 20), spec.Grid(500, 1000)["ncomp"])

	knn, err := Lookup("knn")
	require.NoError(t, err)
	assert.Equal(t, tune.IntValues(5, 3, 1), knn.Grid(3, 6)["k"])
}
