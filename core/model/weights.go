package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression, PLSRegression 等）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は元の特徴量スケールでの重み係数
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Features は特徴量の名前（オプション）
	Features []string `json:"features,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（学習時のサンプル数、チェックサム等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// WeightsVersion is written into every export.
const WeightsVersion = "1.0"

// NewModelWeights builds a fitted export and stamps a checksum of the
// coefficients into Metadata.
func NewModelWeights(modelType string, coef []float64, intercept float64, hyper map[string]interface{}) *ModelWeights {
	c := make([]float64, len(coef))
	copy(c, coef)
	mw := &ModelWeights{
		ModelType:       modelType,
		Version:         WeightsVersion,
		Coefficients:    c,
		Intercept:       intercept,
		Hyperparameters: hyper,
		Metadata:        map[string]interface{}{},
		IsFitted:        true,
	}
	mw.Metadata["checksum"] = mw.Checksum()
	return mw
}

// Checksum は係数と切片の SHA-256 を返す
func (mw *ModelWeights) Checksum() string {
	data, _ := json.Marshal(append(append([]float64{}, mw.Coefficients...), mw.Intercept))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}
	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return fmt.Errorf("unfitted model should not have coefficients")
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return fmt.Errorf("fitted model must have coefficients")
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return fmt.Errorf("features (%d) and coefficients (%d) differ in length", len(mw.Features), len(mw.Coefficients))
	}
	if sum, ok := mw.Metadata["checksum"].(string); ok && sum != mw.Checksum() {
		return fmt.Errorf("checksum mismatch: weights may be corrupted")
	}
	return nil
}

// Predict は重みだけから予測値を計算する（学習済みモデルなしで使える）
func (mw *ModelWeights) Predict(row []float64) (float64, error) {
	if len(row) != len(mw.Coefficients) {
		return 0, fmt.Errorf("row has %d values, weights have %d", len(row), len(mw.Coefficients))
	}
	pred := mw.Intercept
	for j, v := range row {
		pred += v * mw.Coefficients[j]
	}
	return pred, nil
}
