package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy([]string{"a", "b", "b", "a"}, []string{"a", "b", "a", "a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)

	_, err = Accuracy([]string{"a"}, []string{"a", "b"})
	assert.Error(t, err)
}

func TestKappa(t *testing.T) {
	levels := []string{"yes", "no"}
	// 完全一致
	k, err := Kappa([]string{"yes", "no", "yes", "no"}, []string{"yes", "no", "yes", "no"}, levels)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, k, 1e-12)

	// 教科書的な例: 観測一致 0.7, 期待一致 0.5 → κ = 0.4
	yTrue := []string{"yes", "yes", "yes", "yes", "yes", "no", "no", "no", "no", "no"}
	yPred := []string{"yes", "yes", "yes", "yes", "no", "no", "no", "no", "yes", "yes"}
	k, err = Kappa(yTrue, yPred, levels)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, k, 1e-12)
}

func TestConfusionMatrixUnknownLevel(t *testing.T) {
	_, err := ConfusionMatrix([]string{"a"}, []string{"z"}, []string{"a", "b"})
	assert.Error(t, err)
}
