package typeutils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNullValue = errors.New("null value")

// ReformatInt64 converts integer like driver values into an int64.
// Floats are accepted only when they carry no fraction.
func ReformatInt64(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, ErrNullValue
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return uintToInt64(uint64(val))
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return uintToInt64(val)
	case float32:
		return floatToInt64(float64(val))
	case float64:
		return floatToInt64(val)
	case []byte:
		return ReformatInt64(string(val))
	case string:
		s := strings.TrimSpace(val)
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return i, nil
		}
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("failed to parse %q as integer: %w", val, err)
		}
		return floatToInt64(f)
	case interface{ Int64() (int64, error) }: // json.Number
		return val.Int64()
	default:
		return 0, fmt.Errorf("unsupported integer value %v of type %T", v, v)
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", v)
	}
	return int64(v), nil
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}
