package graph

import (
	"strconv"
)

// The accessors below coerce values read back from the engine. SQLite hands back
// int64, float64, string or []byte regardless of the declared column type, and ad-hoc
// query columns carry no declaration at all, so every accessor accepts any of them.
// A value that cannot be converted yields the zero value.

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func intValue(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		if parsed, err := strconv.ParseInt(x, 10, 64); err == nil {
			return parsed
		}
		return 0
	case []byte:
		return intValue(string(x))
	default:
		return 0
	}
}

func floatValue(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		if parsed, err := strconv.ParseFloat(x, 64); err == nil {
			return parsed
		}
		return 0
	case []byte:
		return floatValue(string(x))
	default:
		return 0
	}
}

func boolValue(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case []byte:
		return boolValue(string(x))
	default:
		return false
	}
}

// String returns the named column as a string, or "" when absent.
func (r Record) String(key string) string {
	v, _ := r.Get(key)
	return stringValue(v)
}

// Int returns the named column as an integer, or 0 when absent or not numeric.
func (r Record) Int(key string) int64 {
	v, _ := r.Get(key)
	return intValue(v)
}

// Float returns the named column as a float, or 0 when absent or not numeric.
func (r Record) Float(key string) float64 {
	v, _ := r.Get(key)
	return floatValue(v)
}

// Bool returns the named column as a bool. Integer columns are true when non-zero.
func (r Record) Bool(key string) bool {
	v, _ := r.Get(key)
	return boolValue(v)
}
