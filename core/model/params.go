package model

import (
	"math"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// IntParam は設定ファイル由来の値を int に変換する。
// YAML/JSON デコーダは数値を int, int64, float64 のいずれかで返すため、整数値の float64 も受け付ける。
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// FloatParam は数値を float64 に変換する。
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", v)
}

// StringParam は文字列パラメータを取り出す。
func StringParam(name string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(name, "must be a string", v)
}

// BoolParam は真偽値パラメータを取り出す。
func BoolParam(name string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewValidationError(name, "must be a boolean", v)
}

// UnknownParam は未知のパラメータ名に対するエラーを返す。
func UnknownParam(modelName, name string) error {
	return errors.NewValidationError(name, "unknown parameter for "+modelName, name)
}
