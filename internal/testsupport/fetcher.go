package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"keepsake/internal/services"
	"keepsake/internal/services/ytdlp"
)

// FakeFetcher is an in-memory ytdlp.Fetcher. Downloads write the predicted
// file with the configured content.
type FakeFetcher struct {
	mu sync.Mutex

	// Metadata holds full per-URL metadata documents.
	Metadata map[string]map[string]any
	// Listings holds flat listing documents keyed by URL.
	Listings map[string]map[string]any
	// Content holds file bytes per URL; the URL itself is used otherwise.
	Content map[string]string
	// Fail makes the named URLs fail every call.
	Fail map[string]error

	MetadataCalls []string
	FlatCalls     []string
	Downloads     []string
}

// NewFakeFetcher returns an empty fake.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		Metadata: map[string]map[string]any{},
		Listings: map[string]map[string]any{},
		Content:  map[string]string{},
		Fail:     map[string]error{},
	}
}

// AddVideo registers metadata for a single downloadable URL.
func (f *FakeFetcher) AddVideo(url, id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Metadata[url] = map[string]any{"id": id, "title": title, "ext": "mp4", "webpage_url": url}
}

// SetListing registers a flat listing for url with the given entry URLs.
func (f *FakeFetcher) SetListing(url string, entryURLs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]any, 0, len(entryURLs))
	for i, entry := range entryURLs {
		entries = append(entries, map[string]any{"id": fmt.Sprintf("e%d", i+1), "url": entry, "title": fmt.Sprintf("Entry %d", i+1)})
	}
	f.Listings[url] = map[string]any{"id": "listing", "title": "Listing", "entries": entries}
}

// FetchMetadata implements ytdlp.Fetcher.
func (f *FakeFetcher) FetchMetadata(_ context.Context, url string, opts ytdlp.Options) (*ytdlp.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.Flat {
		f.FlatCalls = append(f.FlatCalls, url)
	} else {
		f.MetadataCalls = append(f.MetadataCalls, url)
	}
	if err := f.Fail[url]; err != nil {
		return nil, services.Wrap(services.ErrExternalFetch, "fake", "fetch metadata", url, err)
	}
	source := f.Metadata
	if opts.Flat {
		source = f.Listings
	}
	doc, ok := source[url]
	if !ok {
		return nil, services.Wrap(services.ErrExternalFetch, "fake", "fetch metadata", "unknown url "+url, nil)
	}
	return ytdlp.NewMetadata(doc), nil
}

// Download implements ytdlp.Fetcher.
func (f *FakeFetcher) Download(_ context.Context, url string, opts ytdlp.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Downloads = append(f.Downloads, url)
	if err := f.Fail[url]; err != nil {
		return services.Wrap(services.ErrExternalFetch, "fake", "download", url, err)
	}
	doc, ok := f.Metadata[url]
	if !ok {
		return services.Wrap(services.ErrExternalFetch, "fake", "download", "unknown url "+url, nil)
	}
	name, err := ytdlp.PredictFilename(ytdlp.NewMetadata(doc), opts.NamingTemplate)
	if err != nil {
		return err
	}
	content, ok := f.Content[url]
	if !ok {
		content = url
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(opts.Dir, name), []byte(content), 0o644)
}

// DownloadCount returns how many downloads were attempted.
func (f *FakeFetcher) DownloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Downloads)
}
