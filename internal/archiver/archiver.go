package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"

	"keepsake/internal/catalog"
	"keepsake/internal/dedup"
	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/router"
	"keepsake/internal/services"
	"keepsake/internal/services/ytdlp"
	"keepsake/internal/templates"
)

// bulkyMetadata are yt-dlp fields left out of the stored metadata blob.
var bulkyMetadata = []string{
	"formats", "requested_formats", "thumbnails", "automatic_captions",
	"subtitles", "heatmap", "requested_downloads", "http_headers",
}

// Dependencies wires an Archiver.
type Dependencies struct {
	Templates      *templates.Registry
	Router         *router.Router
	Fetcher        ytdlp.Fetcher
	Catalog        *catalog.Catalog
	Dedup          *dedup.Service
	NamingTemplate string
	Logger         *slog.Logger
	// Progress receives download progress when set.
	Progress func(url string, update ytdlp.ProgressUpdate)
}

// Archiver downloads and catalogues single URLs.
type Archiver struct {
	templates      *templates.Registry
	router         *router.Router
	fetcher        ytdlp.Fetcher
	catalog        *catalog.Catalog
	dedup          *dedup.Service
	namingTemplate string
	logger         *slog.Logger
	progress       func(string, ytdlp.ProgressUpdate)
	extended       map[string]bool
}

// New builds an Archiver.
func New(deps Dependencies) *Archiver {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Archiver{
		templates:      deps.Templates,
		router:         deps.Router,
		fetcher:        deps.Fetcher,
		catalog:        deps.Catalog,
		dedup:          deps.Dedup,
		namingTemplate: deps.NamingTemplate,
		logger:         logging.NewComponentLogger(logger, "archiver"),
		progress:       deps.Progress,
		extended:       make(map[string]bool),
	}
}

// Request describes one URL to archive.
type Request struct {
	URL string
	// Subscription names the subscription that triggered the download. It
	// adds a path segment and lifts the direct_download restriction.
	Subscription string
	// Match skips template resolution when the caller already resolved URL.
	Match *templates.Match
	// Metadata skips the metadata fetch when the caller already has it.
	Metadata *ytdlp.Metadata
	Tags     []string
}

// Result describes an archived URL.
type Result struct {
	URL  string
	Path string
	// Downloaded is false when the predicted file was already on disk.
	Downloaded bool
	Save       *dedup.Result
}

// Plan is the destination computed for a URL before any download.
type Plan struct {
	Match    *templates.Match
	Metadata *ytdlp.Metadata
	Dir      string
	FileName string
}

// Path returns the predicted absolute file path.
func (p *Plan) Path() string {
	return filepath.Join(p.Dir, p.FileName)
}

// Prepare resolves, routes and names req.URL without downloading.
func (a *Archiver) Prepare(ctx context.Context, req Request) (*Plan, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, services.Wrap(services.ErrValidation, "archiver", "prepare", "url required", nil)
	}
	match := req.Match
	if match == nil {
		var err error
		if match, err = a.templates.Resolve(url); err != nil {
			return nil, err
		}
	}
	if name, cat, ok := match.Category(); ok && !cat.DirectDownload && req.Subscription == "" {
		return nil, services.Wrap(services.ErrValidation, "archiver", match.Template.Name,
			fmt.Sprintf("category %q does not allow direct downloads", name), nil)
	}
	dir, err := a.router.Route(match, router.Options{Subscription: req.Subscription})
	if err != nil {
		return nil, err
	}
	meta := req.Metadata
	if meta == nil {
		if meta, err = a.fetcher.FetchMetadata(ctx, url, ytdlp.Options{}); err != nil {
			return nil, err
		}
	}
	fileName, err := ytdlp.PredictFilename(meta, a.namingTemplate)
	if err != nil {
		return nil, err
	}
	return &Plan{Match: match, Metadata: meta, Dir: dir, FileName: fileName}, nil
}

// Archive downloads req.URL unless its predicted file already exists, then
// records the file in the catalog.
func (a *Archiver) Archive(ctx context.Context, req Request) (*Result, error) {
	plan, err := a.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, req, plan)
}

// Execute downloads and catalogues a prepared plan.
func (a *Archiver) Execute(ctx context.Context, req Request, plan *Plan) (*Result, error) {
	url := strings.TrimSpace(req.URL)
	tpl := plan.Match.Template
	ctx = services.WithScheme(ctx, tpl.Name)
	logger := logging.WithContext(ctx, a.logger)
	path := plan.Path()
	result := &Result{URL: url, Path: path}

	if fileutil.Exists(path) {
		logger.Info("file already present, skipping download", logging.String("path", path))
	} else {
		opts := ytdlp.Options{Dir: plan.Dir, NamingTemplate: a.namingTemplate}
		if a.progress != nil {
			opts.Progress = func(u ytdlp.ProgressUpdate) { a.progress(url, u) }
		}
		if err := a.fetcher.Download(ctx, url, opts); err != nil {
			return nil, err
		}
		if !fileutil.Exists(path) {
			return nil, services.Wrap(services.ErrExternalFetch, "archiver", "download",
				fmt.Sprintf("downloader produced no file at %s", path), nil)
		}
		result.Downloaded = true
	}

	if err := a.extendItems(ctx, tpl); err != nil {
		return nil, err
	}
	metadata, err := a.metadataBlob(ctx, plan.Metadata)
	if err != nil {
		return nil, err
	}
	tags := append([]string(nil), req.Tags...)
	if name, _, ok := plan.Match.Category(); ok {
		tags = append(tags, name)
	}
	saved, err := a.dedup.Save(ctx, dedup.Request{
		Path:       path,
		URL:        url,
		Tags:       tags,
		SchemeName: tpl.Name,
		Metadata:   metadata,
		Extra:      metadataColumns(tpl, plan.Metadata),
	})
	if err != nil {
		return nil, err
	}
	result.Save = saved
	logger.Info("url archived",
		logging.String("url", url),
		logging.String("path", path),
		logging.Bool("downloaded", result.Downloaded),
		logging.String("outcome", string(saved.Outcome)),
	)
	return result, nil
}

// extendItems adds the template's item columns once per process.
func (a *Archiver) extendItems(ctx context.Context, tpl *templates.Template) error {
	if a.extended[tpl.Name] {
		return nil
	}
	if err := a.catalog.ExtendItems(ctx, tpl.ItemColumnList()); err != nil {
		return err
	}
	a.extended[tpl.Name] = true
	return nil
}

func (a *Archiver) metadataBlob(ctx context.Context, meta *ytdlp.Metadata) (map[string]any, error) {
	record, err := a.catalog.Flag(ctx, catalog.SettingRecordMetadata)
	if err != nil || !record || meta == nil {
		return nil, err
	}
	blob := maps.Clone(meta.Fields())
	for _, key := range bulkyMetadata {
		delete(blob, key)
	}
	return blob, nil
}

func metadataColumns(tpl *templates.Template, meta *ytdlp.Metadata) map[string]any {
	if len(tpl.MetadataColumns) == 0 || meta == nil {
		return nil
	}
	extra := make(map[string]any, len(tpl.MetadataColumns))
	for column, key := range tpl.MetadataColumns {
		if value, ok := meta.Value(key); ok {
			extra[column] = plainNumber(value)
		}
	}
	return extra
}

// plainNumber unwraps decoded JSON numbers so they bind as SQL numbers.
func plainNumber(value any) any {
	n, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
