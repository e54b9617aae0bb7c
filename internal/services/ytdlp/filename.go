package ytdlp

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"keepsake/internal/services"
	"keepsake/internal/textutil"
)

// missingField replaces template fields the metadata does not carry.
const missingField = "NA"

var fieldPattern = regexp.MustCompile(`%%|%\(([A-Za-z0-9_]+)\)([-+ #0]*[0-9]*(?:\.[0-9]+)?)([sdf])`)

// PredictFilename renders a yt-dlp output template against meta the way
// yt-dlp does for the supported conversions: %(field)s, %(field)d and
// %(field)f with optional flags and width. Missing fields become "NA" and
// path-unsafe characters are replaced.
func PredictFilename(meta *Metadata, template string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", services.Wrap(services.ErrValidation, "ytdlp", "predict filename", "naming template required", nil)
	}
	rendered := fieldPattern.ReplaceAllStringFunc(template, func(token string) string {
		if token == "%%" {
			return "%"
		}
		groups := fieldPattern.FindStringSubmatch(token)
		return renderField(meta, groups[1], groups[2], groups[3])
	})
	name := textutil.SanitizeFileName(rendered)
	if name == "" || name == "." || name == ".." {
		return "", services.Wrap(services.ErrValidation, "ytdlp", "predict filename",
			fmt.Sprintf("template %q renders an empty file name", template), nil)
	}
	return name, nil
}

func renderField(meta *Metadata, key, flags, verb string) string {
	value, ok := meta.Value(key)
	if !ok {
		return missingField
	}
	switch verb {
	case "d":
		n, ok := integerValue(value)
		if !ok {
			return missingField
		}
		return fmt.Sprintf("%"+flags+"d", n)
	case "f":
		f, ok := floatValue(value)
		if !ok {
			return missingField
		}
		return fmt.Sprintf("%"+flags+"f", f)
	default:
		return textutil.SanitizeFileName(fmt.Sprintf("%"+flags+"s", scalarText(value)))
	}
}

func integerValue(v any) (int64, bool) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
		if f, err := val.Float64(); err == nil {
			return int64(math.Trunc(f)), true
		}
	case float64:
		return int64(math.Trunc(val)), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}
