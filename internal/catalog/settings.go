package catalog

import (
	"context"
	"strconv"

	"keepsake/internal/store"
)

// Setting keys seeded on creation.
const (
	SettingSchemaVersion         = "schema_version"
	SettingPruneMissingLocations = "prune_missing_locations"
	SettingRecordMetadata        = "record_metadata"
)

// Setting returns the stored value for key and whether it exists.
func (c *Catalog) Setting(ctx context.Context, key string) (string, bool, error) {
	rec, err := c.store.FetchOne(ctx, tableSettings, store.Query{
		Where:   store.Equals("key", key),
		Columns: []string{"value"},
	})
	if err != nil || rec == nil {
		return "", false, err
	}
	return rec.String("value"), true, nil
}

// SetSetting inserts or replaces a setting.
func (c *Catalog) SetSetting(ctx context.Context, key, value string) error {
	affected, err := c.store.Update(ctx, tableSettings, store.Record{"value": value}, store.Where(store.Equals("key", key)))
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	_, err = c.store.Insert(ctx, tableSettings, store.Record{"key": key, "value": value})
	return err
}

// SetFlag stores a boolean setting in its canonical spelling.
func (c *Catalog) SetFlag(ctx context.Context, key string, value bool) error {
	return c.SetSetting(ctx, key, strconv.FormatBool(value))
}

// Flag reads a boolean setting. Only "true" (or 1) is true.
func (c *Catalog) Flag(ctx context.Context, key string) (bool, error) {
	return c.store.FetchAsBool(ctx, tableSettings, store.Equals("key", key), "value")
}
