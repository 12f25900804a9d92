package dataset

import (
	"math"

	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"
)

// normalizeValue converts loader output into the canonical in-memory representation:
// integral floats become int64, unsigned ints that fit become int64 and nested
// containers are normalized recursively.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case float64:
		if float64(int64(val)) == val {
			return int64(val)
		}

		return val
	case float32:
		if float32(int64(val)) == val {
			return int64(val)
		}

		return float64(val)
	case int:
		return int64(val)
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}

		return val
	case []any:
		res := make([]any, len(val))
		for i, it := range val {
			res[i] = normalizeValue(it)
		}

		return res
	case yaml.MapSlice:
		res := make(map[string]any, len(val))
		for _, item := range val {
			if ks, ok := item.Key.(string); ok {
				res[ks] = normalizeValue(item.Value)
			}
		}

		return res
	case map[string]any:
		res := make(map[string]any, len(val))
		for k, vv := range val {
			res[k] = normalizeValue(vv)
		}

		return res
	default:
		return v
	}
}

// ValueEqual reports whether an expected dataset value and an actual database value are
// considered equal. Drivers disagree on scan types, so []byte is compared against string,
// every numeric type is compared through float64 with a small epsilon, and strings that
// both parse as decimals are compared numerically (DECIMAL columns surface as strings on
// several drivers).
func ValueEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if bb, ok := actual.([]byte); ok {
		if _, ok2 := expected.(string); ok2 {
			actual = string(bb)
		}
	}

	if ba, ok := expected.([]byte); ok {
		if _, ok2 := actual.(string); ok2 {
			expected = string(ba)
		}
	}

	if fa, ok := toFloat(expected); ok {
		if fb, ok2 := toFloat(actual); ok2 {
			return fa == fb || math.Abs(fa-fb) < 1e-9
		}
	}

	if sa, ok := expected.(string); ok {
		if sb, ok2 := actual.(string); ok2 {
			if sa == sb {
				return true
			}

			da, errA := decimal.NewFromString(sa)
			db, errB := decimal.NewFromString(sb)

			if errA == nil && errB == nil {
				return da.Equal(db)
			}

			return false
		}
	}

	return expected == actual
}

// toFloat normalizes any numeric type to float64
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, true
	default:
		return 0, false
	}
}
