package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"keepsake/internal/services"
)

// encodeValue converts a Go value into the form bound for a column of the
// given kind.
func encodeValue(kind ColumnType, column string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case TypeStructured:
		if raw, ok := value.(json.RawMessage); ok {
			return string(raw), nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %w", services.ErrValidation, column, err)
		}
		return string(data), nil
	case TypeBoolean:
		switch v := value.(type) {
		case bool:
			return boolToInt(v), nil
		case string:
			return boolToInt(strings.EqualFold(v, "true")), nil
		}
		return value, nil
	case TypeTimestamp:
		switch v := value.(type) {
		case time.Time:
			if v.IsZero() {
				return nil, nil
			}
			return v.UTC().Format(time.RFC3339Nano), nil
		case *time.Time:
			if v == nil || v.IsZero() {
				return nil, nil
			}
			return v.UTC().Format(time.RFC3339Nano), nil
		}
		return value, nil
	}
	if t, ok := value.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano), nil
	}
	if !isScalar(value) {
		return nil, fmt.Errorf("%w: column %s holds %T but is not structured", services.ErrValidation, column, value)
	}
	return value, nil
}

// decodeValue converts a scanned driver value back to its logical form.
func decodeValue(kind ColumnType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case TypeStructured:
		var text []byte
		switch v := value.(type) {
		case string:
			text = []byte(v)
		case []byte:
			text = v
		default:
			return value, nil
		}
		if len(text) == 0 {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal(text, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	case TypeBoolean:
		switch v := value.(type) {
		case int64:
			return v != 0, nil
		case bool:
			return v, nil
		case string:
			return strings.EqualFold(v, "true") || v == "1", nil
		}
		return value, nil
	case TypeTimestamp:
		switch v := value.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			if t, err := parseTimeString(v); err == nil {
				return t, nil
			}
			return v, nil
		}
		return value, nil
	case TypeText:
		if b, ok := value.([]byte); ok {
			return string(b), nil
		}
	}
	return value, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t.UTC(), nil
	}
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
