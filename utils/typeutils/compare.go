package typeutils

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Compare returns 0 for equal, -1 if a < b and 1 if a > b. nil sorts first.
// Integers of any width and signedness compare numerically against each other.
func Compare(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch aVal := a.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if !isInteger(b) {
			break
		}
		return compareIntegers(reflect.ValueOf(a), reflect.ValueOf(b))
	case float32, float64:
		bFloat, ok := toFloat(b)
		if !ok {
			break
		}
		aFloat, _ := toFloat(aVal)
		if math.IsNaN(aFloat) {
			if math.IsNaN(bFloat) {
				return 0
			}
			return -1
		}
		if math.IsNaN(bFloat) {
			return 1
		}
		const eps = 1e-6
		diff := aFloat - bFloat
		if math.Abs(diff) < eps {
			return 0
		} else if diff < 0 {
			return -1
		}
		return 1
	case time.Time:
		bTime, ok := b.(time.Time)
		if !ok {
			break
		}
		return aVal.Compare(bTime)
	case bool:
		bBool, ok := b.(bool)
		if !ok {
			break
		}
		// false < true
		if !aVal && bBool {
			return -1
		} else if aVal && !bBool {
			return 1
		}
		return 0
	case []byte:
		if bBytes, ok := b.([]byte); ok {
			return strings.Compare(string(aVal), string(bBytes))
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func compareIntegers(a, b reflect.Value) int {
	aSigned, bSigned := a.CanInt(), b.CanInt()
	switch {
	case aSigned && bSigned:
		return cmp3(a.Int() < b.Int(), a.Int() > b.Int())
	case !aSigned && !bSigned:
		return cmp3(a.Uint() < b.Uint(), a.Uint() > b.Uint())
	case aSigned:
		if a.Int() < 0 {
			return -1
		}
		return cmp3(uint64(a.Int()) < b.Uint(), uint64(a.Int()) > b.Uint())
	default:
		if b.Int() < 0 {
			return 1
		}
		return cmp3(a.Uint() < uint64(b.Int()), a.Uint() > uint64(b.Int()))
	}
}

func cmp3(less, greater bool) int {
	if less {
		return -1
	}
	if greater {
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}
