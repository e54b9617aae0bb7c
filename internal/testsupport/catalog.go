package testsupport

import (
	"context"
	"testing"

	"keepsake/internal/catalog"
	"keepsake/internal/config"
	"keepsake/internal/logging"
)

// MustOpenCatalog opens a store and a catalog on top of it.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Catalog {
	t.Helper()

	st := MustOpenStore(t, cfg)
	cat, err := catalog.Open(context.Background(), st, logging.NewNop())
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	return cat
}

// MustInsertItem stores an item for tests.
func MustInsertItem(t testing.TB, cat *catalog.Catalog, item *catalog.Item) *catalog.Item {
	t.Helper()

	if _, err := cat.InsertItem(context.Background(), item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	return item
}
