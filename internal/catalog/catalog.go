package catalog

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"keepsake/internal/logging"
	"keepsake/internal/store"
)

const (
	tableItems         = "items"
	tableSubscriptions = "subscriptions"
	tableSettings      = "settings"
)

//go:embed schemas/*.jsonc
var schemaFS embed.FS

// Catalog provides typed access to keepsake's tables.
type Catalog struct {
	store  *store.Store
	logger *slog.Logger
}

// Schema returns the embedded schema for one of the catalog tables.
func Schema(table string) (store.TableSchema, error) {
	data, err := schemaFS.ReadFile("schemas/" + table + ".jsonc")
	if err != nil {
		return store.TableSchema{}, fmt.Errorf("read schema %s: %w", table, err)
	}
	return store.ParseSchema(data)
}

// Open creates any missing catalog tables, applies additive migrations for
// tables that already exist, and returns a Catalog bound to st.
func Open(ctx context.Context, st *store.Store, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{store: st, logger: logging.NewComponentLogger(logger, "catalog")}
	for _, table := range []string{tableSettings, tableItems, tableSubscriptions} {
		schema, err := Schema(table)
		if err != nil {
			return nil, err
		}
		exists, err := st.TableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := st.EnsureSchema(ctx, schema); err != nil {
				return nil, fmt.Errorf("migrate %s: %w", table, err)
			}
			continue
		}
		if err := st.CreateTable(ctx, schema); err != nil {
			return nil, fmt.Errorf("create %s: %w", table, err)
		}
	}
	return c, nil
}

// Store returns the underlying record store.
func (c *Catalog) Store() *store.Store {
	return c.store
}

// ExtendItems adds template-declared columns to the items table.
func (c *Catalog) ExtendItems(ctx context.Context, columns []store.Column) error {
	if len(columns) == 0 {
		return nil
	}
	return c.store.EnsureSchema(ctx, store.TableSchema{Table: tableItems, Columns: columns})
}
