package model

import (
	"math"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

// ParamInt はハイパーパラメータ値を int に変換する
// YAML や JSON 由来の float64 も整数値であれば受け付ける
func ParamInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, errors.NewValidationError(name, "expected an integer", value)
}

// ParamOptionalInt は nil を none として 0 に変換する（max_depth など）
func ParamOptionalInt(name string, value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}
	if s, ok := value.(string); ok && (s == "none" || s == "None") {
		return 0, nil
	}
	return ParamInt(name, value)
}

// ParamFloat はハイパーパラメータ値を float64 に変換する
func ParamFloat(name string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.NewValidationError(name, "expected a number", value)
}

// ParamString はハイパーパラメータ値を string に変換する
func ParamString(name string, value interface{}) (string, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return "", errors.NewValidationError(name, "expected a string", value)
}

// ParamBool はハイパーパラメータ値を bool に変換する
func ParamBool(name string, value interface{}) (bool, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return false, errors.NewValidationError(name, "expected a boolean", value)
}

// UnknownParam は未知のハイパーパラメータに対するエラーを返す
func UnknownParam(modelName, key string) error {
	return errors.NewValidationError(key, "invalid parameter for "+modelName, key)
}
