package metrics

import (
	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

// Accuracy は一致したラベルの割合を返す
func Accuracy(yTrue, yPred []string) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("Accuracy", "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("Accuracy", len(yTrue), len(yPred), 0)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ConfusionMatrix は行が観測、列が予測のクラス別件数を返す
// levels はクラスの並び順
func ConfusionMatrix(yTrue, yPred []string, levels []string) ([][]int, error) {
	if len(yPred) != len(yTrue) {
		return nil, errors.NewDimensionError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	index := make(map[string]int, len(levels))
	for i, l := range levels {
		index[l] = i
	}
	cm := make([][]int, len(levels))
	for i := range cm {
		cm[i] = make([]int, len(levels))
	}
	for i := range yTrue {
		r, ok := index[yTrue[i]]
		if !ok {
			return nil, errors.NewValueError("ConfusionMatrix", "unknown observed level "+yTrue[i])
		}
		c, ok := index[yPred[i]]
		if !ok {
			return nil, errors.NewValueError("ConfusionMatrix", "unknown predicted level "+yPred[i])
		}
		cm[r][c]++
	}
	return cm, nil
}

// Kappa はCohenのカッパ係数を返す（偶然の一致を補正した正解率）
func Kappa(yTrue, yPred []string, levels []string) (float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, levels)
	if err != nil {
		return 0, err
	}
	n := float64(len(yTrue))
	if n == 0 {
		return 0, errors.NewValueError("Kappa", "empty labels")
	}

	var observed, expected float64
	for i := range cm {
		observed += float64(cm[i][i])
		var rowSum, colSum float64
		for j := range cm {
			rowSum += float64(cm[i][j])
			colSum += float64(cm[j][i])
		}
		expected += rowSum * colSum / n
	}
	observed /= n
	expected /= n
	if expected == 1 {
		return 0, errors.Newf("Kappa: expected agreement is 1 (single class)")
	}
	return (observed - expected) / (1 - expected), nil
}
