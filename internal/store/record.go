package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is one row keyed by column name. Values read back from a Store are
// decoded per column kind: structured columns hold maps and slices, boolean
// columns hold bool, and timestamp columns hold time.Time.
type Record map[string]any

// String returns the value as text, or "" when absent.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the value as an integer, or 0 when absent or not numeric.
func (r Record) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case json.Number:
		i, _ := v.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	}
	return 0
}

// Bool returns the value as a boolean.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v == "true" || v == "1"
	}
	return false
}

// Time returns the value as a timestamp, or the zero time.
func (r Record) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		t, _ := parseTimeString(v)
		return t
	}
	return time.Time{}
}

// Strings returns a structured list value as strings. Non-string elements
// are skipped.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map returns a structured object value.
func (r Record) Map(key string) map[string]any {
	if m, ok := r[key].(map[string]any); ok {
		return m
	}
	return nil
}
