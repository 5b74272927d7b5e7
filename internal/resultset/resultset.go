// Package resultset holds the row values returned by the query executor.
package resultset

import (
	"strconv"
	"time"
)

// Row maps a column name to a scalar: float64, string, or nil.
type Row map[string]any

// Set is an ordered sequence of rows, in the order the store returned them.
type Set []Row

// Normalize converts a driver value into one of the scalar kinds a Row holds.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case int:
		return float64(val)
	case bool:
		if val {
			return float64(1)
		}
		return float64(0)
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.UTC().Format("2006-01-02")
	default:
		return nil
	}
}

// Float returns the numeric value of col. Missing, null and non-numeric
// values read as 0.
func (r Row) Float(col string) float64 {
	switch val := r[col].(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// String returns the textual value of col, or "" when missing or null.
func (r Row) String(col string) string {
	switch val := r[col].(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// IsNull reports whether col is absent or null.
func (r Row) IsNull(col string) bool {
	return r[col] == nil
}

// Sum adds up col over every row.
func (s Set) Sum(col string) float64 {
	var total float64
	for _, r := range s {
		total += r.Float(col)
	}
	return total
}
