package ytdlp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// DefaultEntriesPath locates listing entries in flat playlist output.
const DefaultEntriesPath = "$.entries[*]"

// Entry is one element of a remote listing.
type Entry struct {
	ID    string
	URL   string
	Title string
}

// Metadata is the decoded JSON document yt-dlp prints for a URL.
type Metadata struct {
	fields map[string]any
}

// ParseMetadata decodes a yt-dlp JSON document. Numbers keep their textual
// form so integer ids survive unchanged.
func ParseMetadata(data []byte) (*Metadata, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty metadata output")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if fields == nil {
		return nil, errors.New("metadata is not a JSON object")
	}
	return &Metadata{fields: fields}, nil
}

// NewMetadata wraps already decoded fields.
func NewMetadata(fields map[string]any) *Metadata {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Metadata{fields: fields}
}

// Fields returns the decoded document.
func (m *Metadata) Fields() map[string]any {
	if m == nil {
		return nil
	}
	return m.fields
}

// Value returns the raw value stored under key.
func (m *Metadata) Value(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.fields[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String renders the value under key as text, or "" when absent.
func (m *Metadata) String(key string) string {
	v, ok := m.Value(key)
	if !ok {
		return ""
	}
	return scalarText(v)
}

// Entries extracts listing entries with the JSONPath expression path.
// Entries without a URL are skipped.
func (m *Metadata) Entries(path string) ([]Entry, error) {
	if m == nil {
		return nil, nil
	}
	if strings.TrimSpace(path) == "" {
		path = DefaultEntriesPath
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid entries path %q: %w", path, err)
	}
	results := expr.Get(m.fields)
	entries := make([]Entry, 0, len(results))
	for _, result := range results {
		node, ok := result.(map[string]any)
		if !ok {
			continue
		}
		entry := Entry{
			ID:    scalarText(node["id"]),
			URL:   firstText(node, "url", "webpage_url", "original_url"),
			Title: scalarText(node["title"]),
		}
		if entry.URL == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Count reports the listing size: playlist_count when yt-dlp provides it,
// otherwise the number of extracted entries.
func (m *Metadata) Count(path string) (int, error) {
	if v, ok := m.Value("playlist_count"); ok {
		if n, err := strconv.Atoi(scalarText(v)); err == nil && n >= 0 {
			return n, nil
		}
	}
	entries, err := m.Entries(path)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func firstText(node map[string]any, keys ...string) string {
	for _, key := range keys {
		if text := scalarText(node[key]); text != "" {
			return text
		}
	}
	return ""
}

func scalarText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprint(val)
	}
}
