package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// ImportResult summarizes an import run.
type ImportResult struct {
	Imported int
	Merged   int
	Skipped  int
	Failures []ImportFailure
}

// ImportFailure records one record that could not be imported. Index is the
// record's position in the file.
type ImportFailure struct {
	Index int
	Ref   string
	Kind  string
	Err   error
}

func (r *ImportResult) fail(index int, ref string, err error) {
	r.Failures = append(r.Failures, ImportFailure{Index: index, Ref: ref, Kind: services.Kind(err), Err: err})
}

// ExportSubscriptions writes every subscription to path as a JSON array.
func (c *Catalog) ExportSubscriptions(ctx context.Context, path string) (int, error) {
	subs, err := c.ListSubscriptions(ctx)
	if err != nil {
		return 0, err
	}
	return len(subs), writeJSONFile(path, subs)
}

// ExportItems writes every item to path as a JSON array.
func (c *Catalog) ExportItems(ctx context.Context, path string) (int, error) {
	items, err := c.ListItems(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), writeJSONFile(path, items)
}

// ImportSubscriptions adds subscriptions from a JSON array. Entries whose
// canonical URL is already tracked are skipped. A record that cannot be stored
// is collected into the result and the rest of the file is still imported.
func (c *Catalog) ImportSubscriptions(ctx context.Context, path string) (ImportResult, error) {
	var subs []*Subscription
	if err := readJSONFile(path, &subs); err != nil {
		return ImportResult{}, err
	}
	var result ImportResult
	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if sub == nil {
			continue
		}
		existing, err := c.SubscriptionByURL(ctx, sub.CanonicalURL)
		if err != nil {
			result.fail(i, sub.CanonicalURL, err)
			continue
		}
		if existing != nil {
			result.Skipped++
			continue
		}
		sub.ID = 0
		if _, err := c.InsertSubscription(ctx, sub); err != nil {
			result.fail(i, sub.CanonicalURL, err)
			continue
		}
		result.Imported++
	}
	c.logImport("subscriptions imported", path, result)
	return result, nil
}

// ImportItems adds items from a JSON array. An item whose hash or location is
// already catalogued has its URLs and tags merged instead. Template columns
// carried in an item's extra fields are kept when the items table declares
// them.
func (c *Catalog) ImportItems(ctx context.Context, path string) (ImportResult, error) {
	var items []*Item
	if err := readJSONFile(path, &items); err != nil {
		return ImportResult{}, err
	}
	columns, err := c.store.Columns(ctx, tableItems)
	if err != nil {
		return ImportResult{}, err
	}
	declared := make(map[string]bool, len(columns))
	for _, col := range columns {
		declared[col.Name] = true
	}

	var result ImportResult
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if item == nil {
			continue
		}
		ref := item.Location()
		existing, err := c.matchImportedItem(ctx, item)
		if err != nil {
			result.fail(i, ref, err)
			continue
		}
		if existing == nil {
			item.ID = 0
			for key := range item.Extra {
				if !declared[key] {
					c.logger.Debug("dropping undeclared item column", logging.String("column", key), logging.String("item", ref))
					delete(item.Extra, key)
				}
			}
			if _, err := c.InsertItem(ctx, item); err != nil {
				result.fail(i, ref, err)
				continue
			}
			result.Imported++
			continue
		}
		urlsChanged, err := c.AppendURLs(ctx, existing, item.URLs...)
		if err != nil {
			result.fail(i, ref, err)
			continue
		}
		tagsChanged, err := c.AppendTags(ctx, existing, item.Tags...)
		if err != nil {
			result.fail(i, ref, err)
			continue
		}
		if urlsChanged || tagsChanged {
			result.Merged++
		} else {
			result.Skipped++
		}
	}
	c.logImport("items imported", path, result)
	return result, nil
}

func (c *Catalog) logImport(msg, path string, result ImportResult) {
	for _, f := range result.Failures {
		logging.WarnWithContext(c.logger, "import record rejected", "catalog_import_failed",
			logging.String("path", path),
			logging.Int("index", f.Index),
			logging.String("record", f.Ref),
			logging.Error(f.Err),
			logging.String(logging.FieldErrorHint, "fix the record and import the file again"),
			logging.String(logging.FieldImpact, "record not imported"),
		)
	}
	c.logger.Info(msg,
		logging.String("path", path),
		logging.Int("imported", result.Imported),
		logging.Int("merged", result.Merged),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", len(result.Failures)),
	)
}

func (c *Catalog) matchImportedItem(ctx context.Context, item *Item) (*Item, error) {
	if item.ContentHash != "" {
		existing, err := c.ItemByHash(ctx, item.ContentHash)
		if err != nil || existing != nil {
			return existing, err
		}
	}
	return c.ItemByLocation(ctx, item.FileName, item.FilePath)
}

func writeJSONFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
