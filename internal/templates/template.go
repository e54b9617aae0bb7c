package templates

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"keepsake/internal/services"
	"keepsake/internal/store"
)

const (
	defaultSegmentIndex = 1
	defaultEntriesPath  = "$.entries[*]"
	wildcard            = "*"
)

// StringSet accepts either a single string or a list of strings.
type StringSet []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringSet{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = list
	return nil
}

// Accepts reports whether value is in the set. "*" accepts anything.
func (s StringSet) Accepts(value string) bool {
	return slices.Contains(s, wildcard) || slices.Contains(s, value)
}

// DomainMatcher lists the host parts a template accepts.
type DomainMatcher struct {
	TLD       StringSet `json:"tld"`
	SLD       StringSet `json:"sld"`
	Subdomain StringSet `json:"subdomain"`
}

// Matches reports whether every part of host is accepted.
func (d DomainMatcher) Matches(host Host) bool {
	return d.TLD.Accepts(host.TLD) && d.SLD.Accepts(host.SLD) && d.Subdomain.Accepts(host.Subdomain)
}

// Category holds per-category overrides.
type Category struct {
	DirectDownload  bool   `json:"direct_download"`
	Subscription    bool   `json:"subscription"`
	SubscriptionURL string `json:"subscription_url"`
	StoragePath     string `json:"storage_path"`
}

// Categories describes how a URL path selects a category.
type Categories struct {
	Enabled      bool                `json:"enabled"`
	Required     bool                `json:"required"`
	SegmentIndex *int                `json:"segment_index,omitempty"`
	Available    map[string]Category `json:"available"`
}

// Index returns the path segment holding the category.
func (c Categories) Index() int {
	if c.SegmentIndex == nil {
		return defaultSegmentIndex
	}
	return *c.SegmentIndex
}

// Storage describes where a template's downloads live.
type Storage struct {
	BasePath        string `json:"base_path"`
	CategoryStorage bool   `json:"category_storage"`
}

// Subscription describes how subscriptions are named and addressed.
type Subscription struct {
	Enabled         bool   `json:"enabled"`
	NameLocator     int    `json:"name_locator"`
	URLBlueprint    string `json:"url_blueprint"`
	SubscriptionURL string `json:"subscription_url"`
	EntriesPath     string `json:"entries_path"`
}

// Template is one validated site descriptor.
type Template struct {
	Name            string                  `json:"name"`
	Domain          DomainMatcher           `json:"domain"`
	Categories      Categories              `json:"categories"`
	Storage         Storage                 `json:"storage"`
	Subscription    Subscription            `json:"subscription"`
	ItemColumns     map[string]store.Column `json:"item_columns,omitempty"`
	MetadataColumns map[string]string       `json:"metadata_columns,omitempty"`

	// Key is the file-name stem the template was loaded from.
	Key string `json:"-"`
	// Source is the descriptor path.
	Source string `json:"-"`
}

// Category returns the named category when categories are enabled.
func (t *Template) Category(name string) (Category, bool) {
	if !t.Categories.Enabled || name == "" {
		return Category{}, false
	}
	cat, ok := t.Categories.Available[name]
	return cat, ok
}

// EntriesPath returns the JSONPath selecting listing entries in flat
// metadata.
func (t *Template) EntriesPath() string {
	if t.Subscription.EntriesPath == "" {
		return defaultEntriesPath
	}
	return t.Subscription.EntriesPath
}

// ItemColumnList returns the declared item columns ordered by name.
func (t *Template) ItemColumnList() []store.Column {
	if len(t.ItemColumns) == 0 {
		return nil
	}
	names := make([]string, 0, len(t.ItemColumns))
	for name := range t.ItemColumns {
		names = append(names, name)
	}
	sort.Strings(names)
	cols := make([]store.Column, 0, len(names))
	for _, name := range names {
		col := t.ItemColumns[name]
		col.Name = name
		cols = append(cols, col)
	}
	return cols
}

// checkTyped verifies constraints that need decoded values.
func (t *Template) checkTyped() error {
	if t.Categories.Enabled && t.Categories.Index() < 1 {
		return services.Wrap(services.ErrValidation, "templates", t.Key, "categories.segment_index must be >= 1", nil)
	}
	if t.Subscription.Enabled && t.Subscription.NameLocator < 1 {
		return services.Wrap(services.ErrValidation, "templates", t.Key, "subscription.name_locator must be >= 1", nil)
	}
	for column := range t.MetadataColumns {
		if _, ok := t.ItemColumns[column]; !ok {
			return services.Wrap(services.ErrValidation, "templates", t.Key,
				fmt.Sprintf("metadata_columns.%s is not declared in item_columns", column), nil)
		}
	}
	return nil
}
