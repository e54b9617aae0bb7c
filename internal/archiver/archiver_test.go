package archiver_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"keepsake/internal/archiver"
	"keepsake/internal/catalog"
	"keepsake/internal/dedup"
	"keepsake/internal/services"
	"keepsake/internal/testsupport"
)

func newPipeline(t *testing.T) *testsupport.Pipeline {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	testsupport.WriteTemplate(t, cfg, "example.jsonc", testsupport.ExampleTemplate)
	testsupport.WriteTemplate(t, cfg, "tube.yaml", testsupport.TubeTemplate)
	return testsupport.NewPipeline(t, cfg, nil)
}

func TestArchiveDownloadsAndCatalogues(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	url := "https://example.com/alice/v1"
	p.Fetcher.AddVideo(url, "v1", "First Video")

	res, err := p.Archiver.Archive(ctx, archiver.Request{URL: url})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	want := filepath.Join(p.Config.Paths.BaseDir, "example", "First Video [v1].mp4")
	if res.Path != want || !res.Downloaded {
		t.Fatalf("result = %+v, want downloaded %s", res, want)
	}
	if res.Save.Outcome != dedup.OutcomeInserted {
		t.Fatalf("outcome = %s", res.Save.Outcome)
	}
	item, err := p.Catalog.ItemByURL(ctx, url)
	if err != nil || item == nil {
		t.Fatalf("ItemByURL: %v, %v", item, err)
	}
	if item.SchemeName != "example" || item.Location() != want {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Metadata["title"] != "First Video" {
		t.Fatalf("expected metadata blob, got %v", item.Metadata)
	}
}

func TestArchiveSkipsDownloadWhenFilePresent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	url := "https://example.com/alice/v1"
	p.Fetcher.AddVideo(url, "v1", "First")
	testsupport.WriteFile(t, filepath.Join(p.Config.Paths.BaseDir, "example", "First [v1].mp4"), "already here")

	res, err := p.Archiver.Archive(ctx, archiver.Request{URL: url})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.Downloaded || p.Fetcher.DownloadCount() != 0 {
		t.Fatalf("expected no download, got %+v and %d downloads", res, p.Fetcher.DownloadCount())
	}
	if res.Save == nil || res.Save.Item.ID == 0 {
		t.Fatal("expected existing file to be catalogued")
	}
}

func TestArchiveSameContentFromTwoURLs(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	first, second := "https://example.com/alice/v1", "https://example.com/bob/v9"
	p.Fetcher.AddVideo(first, "v1", "Clip")
	p.Fetcher.AddVideo(second, "v9", "Clip reupload")
	p.Fetcher.Content[first] = "identical"
	p.Fetcher.Content[second] = "identical"

	one, err := p.Archiver.Archive(ctx, archiver.Request{URL: first})
	if err != nil {
		t.Fatalf("Archive first: %v", err)
	}
	two, err := p.Archiver.Archive(ctx, archiver.Request{URL: second})
	if err != nil {
		t.Fatalf("Archive second: %v", err)
	}
	if two.Save.Item.ID != one.Save.Item.ID {
		t.Fatalf("expected one item, got %d and %d", one.Save.Item.ID, two.Save.Item.ID)
	}
	count, _ := p.Catalog.CountItems(ctx)
	if count != 1 {
		t.Fatalf("expected one item row, got %d", count)
	}
	item, _ := p.Catalog.ItemByID(ctx, one.Save.Item.ID)
	if diff := cmp.Diff([]string{first, second}, item.URLs); diff != "" {
		t.Fatalf("urls mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveStoresMetadataColumnsAndCategoryTag(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	url := "https://www.tube.org/clip/bob/c1"
	p.Fetcher.AddVideo(url, "c1", "Clip One")
	p.Fetcher.Metadata[url]["uploader"] = "Bob"

	res, err := p.Archiver.Archive(ctx, archiver.Request{URL: url})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if want := filepath.Join(p.Config.Paths.BaseDir, "tube", "clips", "Clip One [c1].mp4"); res.Path != want {
		t.Fatalf("path = %s, want %s", res.Path, want)
	}
	item, _ := p.Catalog.ItemByID(ctx, res.Save.Item.ID)
	if item.Extra["uploader"] != "Bob" {
		t.Fatalf("expected uploader column, got %v", item.Extra)
	}
	if diff := cmp.Diff([]string{"clip"}, item.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveHonoursRecordMetadataSetting(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	if err := p.Catalog.SetFlag(ctx, catalog.SettingRecordMetadata, false); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	url := "https://example.com/alice/v2"
	p.Fetcher.AddVideo(url, "v2", "Two")
	res, err := p.Archiver.Archive(ctx, archiver.Request{URL: url})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	item, _ := p.Catalog.ItemByID(ctx, res.Save.Item.ID)
	if len(item.Metadata) != 0 {
		t.Fatalf("expected no metadata, got %v", item.Metadata)
	}
}

func TestArchiveRejectsDirectDownloadOfSubscriptionOnlyCategory(t *testing.T) {
	p := newPipeline(t)
	url := "https://www.tube.org/channel/bob/v1"
	p.Fetcher.AddVideo(url, "v1", "x")

	if _, err := p.Archiver.Archive(context.Background(), archiver.Request{URL: url}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	res, err := p.Archiver.Archive(context.Background(), archiver.Request{URL: url, Subscription: "bob"})
	if err != nil {
		t.Fatalf("subscription archive: %v", err)
	}
	if want := filepath.Join(p.Config.Paths.BaseDir, "tube", "channels", "bob", "x [v1].mp4"); res.Path != want {
		t.Fatalf("path = %s, want %s", res.Path, want)
	}
}

func TestArchiveErrors(t *testing.T) {
	p := newPipeline(t)
	p.Fetcher.AddVideo("https://example.com/alice/broken", "b", "Broken")
	p.Fetcher.Fail["https://example.com/alice/broken"] = errors.New("HTTP 403")

	cases := []struct {
		name string
		url  string
		want error
	}{
		{"no template", "https://unknown.net/x", services.ErrNotFound},
		{"fetch failure", "https://example.com/alice/broken", services.ErrExternalFetch},
		{"unknown metadata", "https://example.com/alice/missing", services.ErrExternalFetch},
		{"empty url", " ", services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.Archiver.Archive(context.Background(), archiver.Request{URL: tc.url}); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestArchiveFileCollectsFailures(t *testing.T) {
	p := newPipeline(t)
	good := "https://example.com/alice/v1"
	p.Fetcher.AddVideo(good, "v1", "Good")
	list := filepath.Join(t.TempDir(), "urls.txt")
	testsupport.WriteFile(t, list, "# batch\n"+good+"\nhttps://unknown.net/x\n\n")

	report, err := p.Archiver.ArchiveFile(context.Background(), list)
	if err != nil {
		t.Fatalf("ArchiveFile: %v", err)
	}
	if len(report.Archived) != 1 || report.Downloaded() != 1 {
		t.Fatalf("archived = %+v", report.Archived)
	}
	if len(report.Failures) != 1 || report.Failures[0].Kind != "not_found" {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if _, err := p.Archiver.ArchiveFile(context.Background(), filepath.Join(t.TempDir(), "none.txt")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing list, got %v", err)
	}
}
