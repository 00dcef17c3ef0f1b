// Package testutil holds comparison helpers for tests over decoded records.
package testutil

import (
	"maps"
	"math"
	"slices"

	"github.com/google/go-cmp/cmp"
)

// ConvertToInt64 converts various numeric types to int64 for comparison.
// Returns the int64 value and a boolean indicating success.
func ConvertToInt64(i any) (int64, bool) {
	switch v := i.(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	case float32:
		if v == float32(int64(v)) {
			return int64(v), true
		}
		return 0, false
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
		return 0, false
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// NumericComparer is a cmp.Comparer that treats numbers of different Go
// types as equal when their values match, including inside nested
// map[string]any and []any values.
var NumericComparer = cmp.Comparer(numericEqual)

func numericEqual(x, y any) bool {
	xInt, xOk := ConvertToInt64(x)
	yInt, yOk := ConvertToInt64(y)
	if xOk && yOk {
		return xInt == yInt
	}
	if xFloat, xIsFloat := x.(float64); xIsFloat {
		if yFloat, yIsFloat := y.(float64); yIsFloat {
			return math.Abs(xFloat-yFloat) < 1e-9
		}
	}

	switch xv := x.(type) {
	case map[string]any:
		yv, ok := y.(map[string]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for k, v := range xv {
			w, ok := yv[k]
			if !ok || !numericEqual(v, w) {
				return false
			}
		}
		return true
	case []any:
		yv, ok := y.([]any)
		return ok && slices.EqualFunc(xv, yv, numericEqual)
	}
	return cmp.Equal(x, y)
}

// MapKeys returns the keys of m in sorted order.
func MapKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
