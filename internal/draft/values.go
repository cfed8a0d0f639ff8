package draft

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SqmPerPerch converts land extent from perches to square meters.
const SqmPerPerch = 25.29285264

// PerchesToSqm converts a perch extent to square meters.
func PerchesToSqm(perches float64) float64 {
	return perches * SqmPerPerch
}

// NewRowID returns a client-generated id for a row entity (building,
// comparable, file). Stable for the session; never reused after removal.
func NewRowID() string {
	return uuid.NewString()
}

// IsEmpty reports whether a field value counts as unpopulated: nil, a
// blank string, or an empty map/slice. Zero numbers are populated values.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case StepData:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

// GetString returns the named field as a trimmed string, or "" when the
// field is absent or not string-like. Numbers format with strconv.
func GetString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// GetFloat returns the named field parsed as a number. Strings parse with
// grouping commas stripped ("1,250,000" reads as 1250000).
func GetFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// GetMap returns the named field as a nested record, tolerating both the
// in-memory and the JSON-decoded representations.
func GetMap(m map[string]any, key string) map[string]any {
	switch t := m[key].(type) {
	case map[string]any:
		return t
	case StepData:
		return map[string]any(t)
	default:
		return nil
	}
}

// Rows coerces a row-array field to []map[string]any. JSON round-trips
// decode arrays as []any, so both shapes are accepted.
func Rows(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// BuildingValue computes the depreciated replacement cost of a building
// row: floor_area * replacement_cost_per_sqft * (1 - depreciation_rate/100).
// Returns false when the required inputs are missing.
func BuildingValue(row map[string]any) (float64, bool) {
	area, ok := GetFloat(row, "floor_area")
	if !ok || area <= 0 {
		return 0, false
	}
	rate, ok := GetFloat(row, "replacement_cost_per_sqft")
	if !ok || rate <= 0 {
		return 0, false
	}
	dep, _ := GetFloat(row, "depreciation_rate")
	if dep < 0 {
		dep = 0
	}
	if dep > 100 {
		dep = 100
	}
	return area * rate * (1 - dep/100), true
}

// PopulatedAny reports whether the record has at least one populated field.
func (sd StepData) PopulatedAny() bool {
	return countPopulated(map[string]any(sd)) > 0
}

// PopulatedFields counts non-empty leaf fields across the whole draft.
// Rows count each populated field, not one per row.
func (d Data) PopulatedFields() int {
	n := 0
	for _, sd := range d {
		n += countPopulated(map[string]any(sd))
	}
	return n
}

func countPopulated(m map[string]any) int {
	n := 0
	for _, v := range m {
		switch t := v.(type) {
		case map[string]any:
			n += countPopulated(t)
		case StepData:
			n += countPopulated(map[string]any(t))
		case []map[string]any:
			for _, row := range t {
				n += countPopulated(row)
			}
		case []any:
			for _, e := range t {
				if row, ok := e.(map[string]any); ok {
					n += countPopulated(row)
				} else if !IsEmpty(e) {
					n++
				}
			}
		default:
			if !IsEmpty(v) {
				n++
			}
		}
	}
	return n
}
