package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"keepsake/internal/services"
	"keepsake/internal/store"
)

// InsertItem stores a new item and assigns its ID.
func (c *Catalog) InsertItem(ctx context.Context, item *Item) (int64, error) {
	if item == nil {
		return 0, errors.New("item is nil")
	}
	if strings.TrimSpace(item.FileName) == "" || strings.TrimSpace(item.FilePath) == "" {
		return 0, services.Wrap(services.ErrValidation, "catalog", "insert item", "file name and path are required", nil)
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	item.URLs, _ = mergeUnique(nil, item.URLs...)
	item.Tags, _ = mergeUnique(nil, item.Tags...)

	rec := store.Record{
		"scheme_name": item.SchemeName,
		"file_name":   item.FileName,
		"file_path":   item.FilePath,
		"url_list":    nonNil(item.URLs),
		"tags":        nonNil(item.Tags),
		"created_at":  item.CreatedAt,
		"updated_at":  item.UpdatedAt,
	}
	if item.ContentHash != "" {
		rec["content_hash"] = item.ContentHash
	}
	if len(item.Metadata) > 0 {
		rec["metadata_blob"] = item.Metadata
	}
	maps.Copy(rec, item.Extra)

	id, err := c.store.Insert(ctx, tableItems, rec)
	if err != nil {
		return 0, err
	}
	item.ID = id
	return id, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (c *Catalog) fetchItem(ctx context.Context, q store.Query) (*Item, error) {
	rec, err := c.store.FetchOne(ctx, tableItems, q)
	if err != nil {
		return nil, err
	}
	return itemFromRecord(rec), nil
}

// ItemByID fetches an item by identifier.
func (c *Catalog) ItemByID(ctx context.Context, id int64) (*Item, error) {
	return c.fetchItem(ctx, store.Where(store.Equals("id", id)))
}

// ItemByHash fetches the item with the given content hash.
func (c *Catalog) ItemByHash(ctx context.Context, hash string) (*Item, error) {
	return c.fetchItem(ctx, store.Where(store.Equals("content_hash", hash)))
}

// ItemByLocation fetches the item stored at fileName inside filePath.
func (c *Catalog) ItemByLocation(ctx context.Context, fileName, filePath string) (*Item, error) {
	return c.fetchItem(ctx, store.Where(store.Match(map[string]any{
		"file_name": fileName,
		"file_path": filePath,
	})))
}

// ItemByURL fetches the first item whose URL list contains url.
func (c *Catalog) ItemByURL(ctx context.Context, url string) (*Item, error) {
	return c.fetchItem(ctx, store.Query{
		Extra:     "WHERE EXISTS (SELECT 1 FROM json_each(url_list) WHERE value = ?) ORDER BY id",
		ExtraArgs: []any{url},
	})
}

// ListItems returns every item ordered by ID.
func (c *Catalog) ListItems(ctx context.Context) ([]*Item, error) {
	records, err := c.store.Fetch(ctx, tableItems, store.Query{Extra: "ORDER BY id"})
	if err != nil {
		return nil, err
	}
	items := make([]*Item, 0, len(records))
	for _, rec := range records {
		items = append(items, itemFromRecord(rec))
	}
	return items, nil
}

// CountItems returns the number of catalogued items.
func (c *Catalog) CountItems(ctx context.Context) (int64, error) {
	return c.store.Count(ctx, tableItems, store.Condition{})
}

// AppendURLs adds URLs the item does not track yet. It reports whether the
// item changed.
func (c *Catalog) AppendURLs(ctx context.Context, item *Item, urls ...string) (bool, error) {
	merged, changed := mergeUnique(append([]string(nil), item.URLs...), urls...)
	if !changed {
		return false, nil
	}
	if err := c.updateItem(ctx, item.ID, store.Record{"url_list": merged}); err != nil {
		return false, err
	}
	item.URLs = merged
	return true, nil
}

// AppendTags adds tags the item does not carry yet.
func (c *Catalog) AppendTags(ctx context.Context, item *Item, tags ...string) (bool, error) {
	merged, changed := mergeUnique(append([]string(nil), item.Tags...), tags...)
	if !changed {
		return false, nil
	}
	if err := c.updateItem(ctx, item.ID, store.Record{"tags": merged}); err != nil {
		return false, err
	}
	item.Tags = merged
	return true, nil
}

// UpdateMetadata replaces the metadata blob and template-declared columns.
func (c *Catalog) UpdateMetadata(ctx context.Context, item *Item, metadata map[string]any, extra map[string]any) error {
	values := store.Record{}
	if metadata != nil {
		values["metadata_blob"] = metadata
	}
	maps.Copy(values, extra)
	if len(values) == 0 {
		return nil
	}
	if err := c.updateItem(ctx, item.ID, values); err != nil {
		return err
	}
	if metadata != nil {
		item.Metadata = metadata
	}
	if len(extra) > 0 {
		if item.Extra == nil {
			item.Extra = make(map[string]any, len(extra))
		}
		maps.Copy(item.Extra, extra)
	}
	return nil
}

// UpdateHash records a new content hash for an item.
func (c *Catalog) UpdateHash(ctx context.Context, item *Item, hash string) error {
	if err := c.updateItem(ctx, item.ID, store.Record{"content_hash": hash}); err != nil {
		return err
	}
	item.ContentHash = hash
	return nil
}

func (c *Catalog) updateItem(ctx context.Context, id int64, values store.Record) error {
	values["updated_at"] = time.Now().UTC()
	affected, err := c.store.Update(ctx, tableItems, values, store.Where(store.Equals("id", id)))
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "update item", fmt.Sprintf("item %d", id), nil)
	}
	return nil
}

// DeleteItem removes an item row. Files on disk are not touched.
func (c *Catalog) DeleteItem(ctx context.Context, id int64) error {
	_, err := c.store.Delete(ctx, tableItems, store.Equals("id", id), false)
	return err
}
