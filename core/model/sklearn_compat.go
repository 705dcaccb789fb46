package model

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/YuminosukeSato/apmkit/pkg/errors"
)

// SKLearnCompatible はscikit-learn互換のインターフェース
type SKLearnCompatible interface {
	// GetParams はモデルのハイパーパラメータを取得
	GetParams(deep bool) map[string]interface{}

	// SetParams はモデルのハイパーパラメータを設定
	// 未知のパラメータ名は ValidationError になる
	SetParams(params map[string]interface{}) error

	// Clone はモデルの新しい未学習インスタンスを同じパラメータで作成
	Clone() SKLearnCompatible
}

// WeightExporter は重みをエクスポート可能なモデルのインターフェース
type WeightExporter interface {
	// ExportWeights はモデルの重みをエクスポート
	ExportWeights() (*ModelWeights, error)

	// ImportWeights はモデルの重みをインポート
	ImportWeights(weights *ModelWeights) error
}

// FloatParam は params[key] を float64 として取り出す
// YAML や JSON 由来の int / float64 の両方を受け付ける
func FloatParam(params map[string]interface{}, key string) (float64, bool, error) {
	raw, ok := params[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	default:
		return 0, true, errors.NewValidationError(key, "must be a number", raw)
	}
}

// IntParam は params[key] を int として取り出す
// 整数値の float64 (例: 3.0) は許容する
func IntParam(params map[string]interface{}, key string) (int, bool, error) {
	raw, ok := params[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, true, errors.NewValidationError(key, "must be an integer", raw)
		}
		return int(v), true, nil
	default:
		return 0, true, errors.NewValidationError(key, "must be an integer", raw)
	}
}

// BoolParam は params[key] を bool として取り出す
func BoolParam(params map[string]interface{}, key string) (bool, bool, error) {
	raw, ok := params[key]
	if !ok {
		return false, false, nil
	}
	v, isBool := raw.(bool)
	if !isBool {
		return false, true, errors.NewValidationError(key, "must be a boolean", raw)
	}
	return v, true, nil
}

// CheckKnownParams は params に allowed 以外のキーがあればエラーを返す
func CheckKnownParams(model string, params map[string]interface{}, allowed ...string) error {
	known := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		known[a] = true
	}
	var unknown []string
	for k := range params {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return errors.NewValidationError(strings.Join(unknown, ","),
		fmt.Sprintf("unknown parameter for %s (allowed: %s)", model, strings.Join(allowed, ", ")), params[unknown[0]])
}

// FormatParams はパラメータを "a=1, b=0.1" の形でキー順に整形する
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ", ")
}

func typeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
