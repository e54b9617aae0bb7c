package dedup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"keepsake/internal/catalog"
	"keepsake/internal/config"
	"keepsake/internal/dedup"
	"keepsake/internal/logging"
	"keepsake/internal/services"
	"keepsake/internal/testsupport"
)

type fixture struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	service *dedup.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cat := testsupport.MustOpenCatalog(t, cfg)
	svc := dedup.New(cat, dedup.OpenRegistry(cfg.Paths.RegistryPath), logging.NewNop())
	return fixture{cfg: cfg, catalog: cat, service: svc}
}

func (f fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.cfg.Paths.BaseDir, rel)
	testsupport.WriteFile(t, path, content)
	return path
}

func TestSaveInsertsNewContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.write(t, "example/a.mp4", "alpha")

	res, err := f.service.Save(ctx, dedup.Request{Path: path, URL: "https://example.com/a", Tags: []string{"x"}, SchemeName: "example"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Outcome != dedup.OutcomeInserted {
		t.Fatalf("outcome = %s, want inserted", res.Outcome)
	}
	stored, err := f.catalog.ItemByHash(ctx, res.Hash)
	if err != nil || stored == nil {
		t.Fatalf("ItemByHash: %v, %v", stored, err)
	}
	if stored.FileName != "a.mp4" || stored.FilePath != filepath.Dir(path) {
		t.Fatalf("unexpected location %q %q", stored.FilePath, stored.FileName)
	}
	if diff := cmp.Diff([]string{"https://example.com/a"}, stored.URLs); diff != "" {
		t.Fatalf("urls mismatch (-want +got):\n%s", diff)
	}
}

func TestSameLocationAppendsURLOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.write(t, "example/a.mp4", "alpha")

	for _, url := range []string{"https://example.com/a", "https://mirror.example.com/a", "https://example.com/a"} {
		if _, err := f.service.Save(ctx, dedup.Request{Path: path, URL: url}); err != nil {
			t.Fatalf("Save(%s): %v", url, err)
		}
	}
	count, err := f.catalog.CountItems(ctx)
	if err != nil || count != 1 {
		t.Fatalf("CountItems = %d, %v; want 1", count, err)
	}
	items, _ := f.catalog.ListItems(ctx)
	want := []string{"https://example.com/a", "https://mirror.example.com/a"}
	if diff := cmp.Diff(want, items[0].URLs); diff != "" {
		t.Fatalf("urls mismatch (-want +got):\n%s", diff)
	}
}

func TestIdenticalContentFromTwoLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.write(t, "example/a.mp4", "same bytes")
	second := f.write(t, "other/b.mp4", "same bytes")

	one, err := f.service.Save(ctx, dedup.Request{Path: first, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Save first: %v", err)
	}
	two, err := f.service.Save(ctx, dedup.Request{Path: second, URL: "https://other.org/b"})
	if err != nil {
		t.Fatalf("Save second: %v", err)
	}
	if two.Outcome != dedup.OutcomeDuplicate || two.Item.ID != one.Item.ID {
		t.Fatalf("second save = %+v, want duplicate of item %d", two, one.Item.ID)
	}

	count, _ := f.catalog.CountItems(ctx)
	if count != 1 {
		t.Fatalf("expected one item row, got %d", count)
	}
	item, _ := f.catalog.ItemByID(ctx, one.Item.ID)
	if diff := cmp.Diff([]string{"https://example.com/a", "https://other.org/b"}, item.URLs); diff != "" {
		t.Fatalf("urls mismatch (-want +got):\n%s", diff)
	}

	entries, err := f.service.Registry().Load()
	if err != nil {
		t.Fatalf("Load registry: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one registry entry, got %d", len(entries))
	}
	want := []dedup.Location{
		{RecordID: one.Item.ID, FileName: "a.mp4", FilePath: filepath.Dir(first)},
		{RecordID: one.Item.ID, FileName: "b.mp4", FilePath: filepath.Dir(second)},
	}
	if diff := cmp.Diff(want, entries[one.Hash]); diff != "" {
		t.Fatalf("registry mismatch (-want +got):\n%s", diff)
	}

	// Saving the duplicate again does not grow the registry.
	if _, err := f.service.Save(ctx, dedup.Request{Path: second, URL: "https://other.org/b"}); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	entries, _ = f.service.Registry().Load()
	if len(entries[one.Hash]) != 2 {
		t.Fatalf("expected two locations after repeat, got %+v", entries[one.Hash])
	}
}

func TestDuplicateReplacesMissingOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.write(t, "example/a.mp4", "moved bytes")
	one, err := f.service.Save(ctx, dedup.Request{Path: first, URL: "https://example.com/a", Tags: []string{"t1"}})
	if err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := os.Remove(first); err != nil {
		t.Fatalf("remove: %v", err)
	}

	second := f.write(t, "moved/a.mp4", "moved bytes")
	res, err := f.service.Save(ctx, dedup.Request{Path: second, URL: "https://example.com/a2"})
	if err != nil {
		t.Fatalf("Save second: %v", err)
	}
	if res.Outcome != dedup.OutcomeRelocated {
		t.Fatalf("outcome = %s, want relocated", res.Outcome)
	}
	if gone, _ := f.catalog.ItemByID(ctx, one.Item.ID); gone != nil {
		t.Fatalf("expected original item %d to be pruned", one.Item.ID)
	}
	item, _ := f.catalog.ItemByHash(ctx, res.Hash)
	if item == nil || item.Location() != second {
		t.Fatalf("expected item at %s, got %+v", second, item)
	}
	if diff := cmp.Diff([]string{"https://example.com/a", "https://example.com/a2"}, item.URLs); diff != "" {
		t.Fatalf("urls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"t1"}, item.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}

	entries, _ := f.service.Registry().Load()
	want := []dedup.Location{{RecordID: item.ID, FileName: "a.mp4", FilePath: filepath.Dir(second)}}
	if diff := cmp.Diff(want, entries[res.Hash]); diff != "" {
		t.Fatalf("registry mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingOriginalKeptWhenPruneDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.catalog.SetFlag(ctx, catalog.SettingPruneMissingLocations, false); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	first := f.write(t, "example/a.mp4", "bytes")
	one, _ := f.service.Save(ctx, dedup.Request{Path: first, URL: "u1"})
	_ = os.Remove(first)
	second := f.write(t, "b/a.mp4", "bytes")

	res, err := f.service.Save(ctx, dedup.Request{Path: second, URL: "u2"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Outcome != dedup.OutcomeDuplicate || res.Item.ID != one.Item.ID {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSaveRehashesChangedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.write(t, "example/a.mp4", "v1")
	one, _ := f.service.Save(ctx, dedup.Request{Path: path, URL: "u"})
	testsupport.WriteFile(t, path, "v2")

	res, err := f.service.Save(ctx, dedup.Request{Path: path, URL: "u"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Outcome != dedup.OutcomeRehashed || res.Item.ID != one.Item.ID || res.Hash == one.Hash {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOverwrittenFileBecomesDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.write(t, "example/a.mp4", "alpha")
	second := f.write(t, "example/b.mp4", "beta")
	one, err := f.service.Save(ctx, dedup.Request{Path: first, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Save first: %v", err)
	}
	two, err := f.service.Save(ctx, dedup.Request{Path: second, URL: "https://example.com/b"})
	if err != nil {
		t.Fatalf("Save second: %v", err)
	}

	testsupport.WriteFile(t, second, "alpha")
	res, err := f.service.Save(ctx, dedup.Request{Path: second, URL: "https://example.com/b"})
	if err != nil {
		t.Fatalf("Save overwritten: %v", err)
	}
	if res.Outcome != dedup.OutcomeDuplicate || res.Item.ID != one.Item.ID {
		t.Fatalf("unexpected result %+v", res)
	}
	if gone, _ := f.catalog.ItemByID(ctx, two.Item.ID); gone != nil {
		t.Fatalf("expected stale item %d removed, got %+v", two.Item.ID, gone)
	}
	if old, _ := f.catalog.ItemByHash(ctx, two.Hash); old != nil {
		t.Fatalf("expected no item under the replaced hash, got %+v", old)
	}
	if count, _ := f.catalog.CountItems(ctx); count != 1 {
		t.Fatalf("expected one item row, got %d", count)
	}

	entries, _ := f.service.Registry().Load()
	want := []dedup.Location{
		{RecordID: one.Item.ID, FileName: "a.mp4", FilePath: filepath.Dir(first)},
		{RecordID: one.Item.ID, FileName: "b.mp4", FilePath: filepath.Dir(second)},
	}
	if diff := cmp.Diff(want, entries[one.Hash]); diff != "" {
		t.Fatalf("registry mismatch (-want +got):\n%s", diff)
	}
	if _, ok := entries[two.Hash]; ok {
		t.Fatalf("expected replaced hash dropped from registry, got %+v", entries[two.Hash])
	}
}

func TestSaveMissingFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Save(context.Background(), dedup.Request{Path: filepath.Join(t.TempDir(), "nope.mp4")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.service.Save(context.Background(), dedup.Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyReportsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := f.write(t, "example/kept.mp4", "kept")
	changed := f.write(t, "example/changed.mp4", "before")
	missing := f.write(t, "example/missing.mp4", "missing")
	for _, path := range []string{kept, changed, missing} {
		if _, err := f.service.Save(ctx, dedup.Request{Path: path}); err != nil {
			t.Fatalf("Save %s: %v", path, err)
		}
	}
	testsupport.WriteFile(t, changed, "after")
	_ = os.Remove(missing)
	stray := f.write(t, "example/stray.mp4", "stray")
	f.write(t, "example/partial.mp4.part", "partial")

	report, err := f.service.Verify(ctx, f.cfg.Paths.BaseDir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Checked != 3 || report.Pruned != 1 || len(report.Missing) != 1 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.Missing[0].Location() != missing {
		t.Fatalf("missing = %s", report.Missing[0].Location())
	}
	if len(report.Mismatched) != 1 || report.Mismatched[0].Item.Location() != changed {
		t.Fatalf("mismatched = %+v", report.Mismatched)
	}
	if diff := cmp.Diff([]string{stray}, report.Unregistered); diff != "" {
		t.Fatalf("unregistered mismatch (-want +got):\n%s", diff)
	}
	if report.Clean() {
		t.Fatal("expected report to be dirty")
	}
	count, _ := f.catalog.CountItems(ctx)
	if count != 2 {
		t.Fatalf("expected missing item pruned, %d items remain", count)
	}
}
