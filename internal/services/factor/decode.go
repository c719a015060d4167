package factor

import (
	"fmt"
	"strconv"
	"strings"
)

// Decoder converts a stored cell into the factor's value type.
type Decoder[T any] func(v any) (T, error)

// Float64 accepts any numeric cell and numeric strings.
func Float64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("cannot decode %T as float", v)
	}
}

// String accepts text cells.
func String(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("cannot decode %T as string", v)
	}
}

// Bool accepts booleans, 0/1 integers and boolean strings.
func Bool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	default:
		return false, fmt.Errorf("cannot decode %T as bool", v)
	}
}
