package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SaveWeights はエクスポート可能なモデルの重みをJSONファイルに保存する
//
// 使用例:
//
//	ridge := linear.NewRidge(linear.WithLambda(0.01))
//	// ... 学習 ...
//	err := model.SaveWeights(ridge, "ridge.json", featureNames)
func SaveWeights(m WeightExporter, filename string, features []string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return SaveWeightsToWriter(m, file, features)
}

// SaveWeightsToWriter はモデルの重みをio.Writerに保存する
func SaveWeightsToWriter(m WeightExporter, w io.Writer, features []string) error {
	weights, err := m.ExportWeights()
	if err != nil {
		return err
	}
	if len(features) > 0 {
		weights.Features = append([]string(nil), features...)
	}
	if err := weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(weights); err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	return nil
}

// LoadWeights はJSONファイルから重みを読み込む
func LoadWeights(filename string) (*ModelWeights, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadWeightsFromReader(file)
}

// LoadWeightsFromReader はio.Readerから重みを読み込み、検証する
func LoadWeightsFromReader(r io.Reader) (*ModelWeights, error) {
	var weights ModelWeights
	if err := json.NewDecoder(r).Decode(&weights); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &weights, nil
}
