package filter

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// valuesEqual compares two values for equality.
// Handles type coercion for numeric types and special types.
func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	// Try direct comparison first
	switch av := a.(type) {
	case string:
		switch bv := b.(type) {
		case string:
			return av == bv
		case primitive.ObjectID:
			return av == bv.Hex()
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	case primitive.ObjectID:
		switch bv := b.(type) {
		case primitive.ObjectID:
			return av == bv
		case string:
			return av.Hex() == bv
		}
	case time.Time:
		switch bv := b.(type) {
		case time.Time:
			return av.Equal(bv)
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, bv)
			if err != nil {
				parsed, err = time.Parse(time.RFC3339, bv)
			}
			return err == nil && av.Equal(parsed)
		}
	}

	// Numeric comparison with type coercion
	aNum, aOk := toFloat64(a)
	bNum, bOk := toFloat64(b)
	if aOk && bOk {
		return aNum == bNum
	}

	return false
}

// compareValues compares two values.
// Returns -1 if a < b, 0 if a == b, 1 if a > b, and ok=false if not comparable.
// For strings, uses lexicographic comparison.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	// String comparison (lexicographic)
	if aStr, ok := a.(string); ok {
		if bStr, ok := b.(string); ok {
			return strings.Compare(aStr, bStr), true
		}
	}

	// Time comparison
	if aTime, ok := a.(time.Time); ok {
		bTime, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		if aTime.Before(bTime) {
			return -1, true
		}
		if aTime.After(bTime) {
			return 1, true
		}
		return 0, true
	}

	// Numeric comparison
	aNum, aOk := toFloat64(a)
	bNum, bOk := toFloat64(b)
	if aOk && bOk {
		if aNum < bNum {
			return -1, true
		}
		if aNum > bNum {
			return 1, true
		}
		return 0, true
	}

	return 0, false
}

// toFloat64 converts a value to float64 if possible.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	default:
		return 0, false
	}
}

// toSlice converts a value to a slice if possible.
func toSlice(v any) []any {
	if v == nil {
		return nil
	}

	switch arr := v.(type) {
	case []any:
		return arr
	case primitive.A:
		return arr
	case []string:
		result := make([]any, len(arr))
		for i, s := range arr {
			result[i] = s
		}
		return result
	case []int:
		result := make([]any, len(arr))
		for i, n := range arr {
			result[i] = n
		}
		return result
	case []int64:
		result := make([]any, len(arr))
		for i, n := range arr {
			result[i] = n
		}
		return result
	case []float64:
		result := make([]any, len(arr))
		for i, n := range arr {
			result[i] = n
		}
		return result
	case []map[string]any:
		result := make([]any, len(arr))
		for i, m := range arr {
			result[i] = m
		}
		return result
	case []Document:
		result := make([]any, len(arr))
		for i, m := range arr {
			result[i] = m
		}
		return result
	default:
		return nil
	}
}

// toMap converts a value to a nested document if possible.
func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	case primitive.M:
		return m, true
	default:
		return nil, false
	}
}
