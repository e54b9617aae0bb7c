package catalog

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"time"

	"keepsake/internal/store"
)

// Item is a catalogued download.
type Item struct {
	ID          int64          `json:"id"`
	SchemeName  string         `json:"scheme_name"`
	FileName    string         `json:"file_name"`
	FilePath    string         `json:"file_path"`
	ContentHash string         `json:"content_hash"`
	URLs        []string       `json:"url_list"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata_blob,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Location returns the absolute file path of the item.
func (i Item) Location() string {
	return filepath.Join(i.FilePath, i.FileName)
}

// Entry is one element of a remote listing.
type Entry struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Snapshot is a lightweight view of a remote listing: its size and entries,
// without per-entry metadata.
type Snapshot struct {
	Count     int       `json:"count"`
	Entries   []Entry   `json:"entries"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Subscription is a tracked remote content source.
type Subscription struct {
	ID              int64      `json:"id"`
	SchemeName      string     `json:"scheme_name"`
	DisplayName     string     `json:"display_name"`
	CanonicalURL    string     `json:"canonical_path"`
	SourceURL       string     `json:"user_supplied_path"`
	ContentCount    int        `json:"content_count"`
	DownloadedCount int        `json:"downloaded_count"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	HasNewData      bool       `json:"has_new_data"`
	Current         *Snapshot  `json:"current_snapshot,omitempty"`
	Previous        *Snapshot  `json:"previous_snapshot,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

var itemColumns = []string{
	"id", "scheme_name", "file_name", "file_path", "content_hash",
	"url_list", "tags", "metadata_blob", "created_at", "updated_at",
}

func itemFromRecord(rec store.Record) *Item {
	if rec == nil {
		return nil
	}
	item := &Item{
		ID:          rec.Int64("id"),
		SchemeName:  rec.String("scheme_name"),
		FileName:    rec.String("file_name"),
		FilePath:    rec.String("file_path"),
		ContentHash: rec.String("content_hash"),
		URLs:        rec.Strings("url_list"),
		Tags:        rec.Strings("tags"),
		Metadata:    rec.Map("metadata_blob"),
		CreatedAt:   rec.Time("created_at"),
		UpdatedAt:   rec.Time("updated_at"),
	}
	for key, value := range rec {
		if slices.Contains(itemColumns, key) || value == nil {
			continue
		}
		if item.Extra == nil {
			item.Extra = make(map[string]any)
		}
		item.Extra[key] = value
	}
	return item
}

func subscriptionFromRecord(rec store.Record) *Subscription {
	if rec == nil {
		return nil
	}
	sub := &Subscription{
		ID:              rec.Int64("id"),
		SchemeName:      rec.String("scheme_name"),
		DisplayName:     rec.String("display_name"),
		CanonicalURL:    rec.String("canonical_path"),
		SourceURL:       rec.String("user_supplied_path"),
		ContentCount:    int(rec.Int64("content_count")),
		DownloadedCount: int(rec.Int64("downloaded_count")),
		HasNewData:      rec.Bool("has_new_data"),
		Current:         snapshotFromValue(rec["current_snapshot"]),
		Previous:        snapshotFromValue(rec["previous_snapshot"]),
		CreatedAt:       rec.Time("created_at"),
	}
	if checked := rec.Time("last_checked_at"); !checked.IsZero() {
		sub.LastCheckedAt = &checked
	}
	return sub
}

func snapshotFromValue(value any) *Snapshot {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	return &snap
}

func snapshotValue(snap *Snapshot) any {
	if snap == nil {
		return nil
	}
	return snap
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// mergeUnique appends values missing from list, preserving order.
func mergeUnique(list []string, values ...string) ([]string, bool) {
	changed := false
	for _, v := range values {
		if v == "" || slices.Contains(list, v) {
			continue
		}
		list = append(list, v)
		changed = true
	}
	return list, changed
}
