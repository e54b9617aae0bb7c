package ytdlp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// Options shape a single fetch or download.
type Options struct {
	// Flat lists a playlist or channel without resolving each entry.
	Flat bool
	// Dir is the download destination directory.
	Dir string
	// NamingTemplate is the yt-dlp output template for the file name.
	NamingTemplate string
	// Progress receives download progress when set.
	Progress func(ProgressUpdate)
}

// Fetcher is the downloader surface consumed by the archiver and the
// subscription engine.
type Fetcher interface {
	FetchMetadata(ctx context.Context, url string, opts Options) (*Metadata, error)
	Download(ctx context.Context, url string, opts Options) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithTimeouts bounds downloads and metadata fetches. Zero disables a bound.
func WithTimeouts(download, metadata time.Duration) Option {
	return func(c *Client) {
		c.downloadTimeout = download
		c.metadataTimeout = metadata
	}
}

// WithExtraArgs appends arguments to every invocation.
func WithExtraArgs(args ...string) Option {
	return func(c *Client) {
		c.extraArgs = append([]string(nil), args...)
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary          string
	extraArgs       []string
	downloadTimeout time.Duration
	metadataTimeout time.Duration
	exec            Executor
	logger          *slog.Logger
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ytdlp", "new", "downloader binary required", nil)
	}
	client := &Client{
		binary: binary,
		exec:   commandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "ytdlp")
	return client, nil
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// FetchMetadata runs yt-dlp in simulate mode and decodes the JSON document
// it prints. With opts.Flat set, playlist entries are listed without being
// resolved individually.
func (c *Client) FetchMetadata(ctx context.Context, url string, opts Options) (*Metadata, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, services.Wrap(services.ErrValidation, "ytdlp", "fetch metadata", "url required", nil)
	}
	args := []string{"--dump-single-json", "--skip-download", "--no-warnings"}
	if opts.Flat {
		args = append(args, "--flat-playlist")
	}
	args = append(args, c.extraArgs...)
	args = append(args, "--", url)

	ctx, cancel := withTimeout(ctx, c.metadataTimeout)
	defer cancel()

	var out strings.Builder
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalFetch, "ytdlp", "fetch metadata", url, err)
	}
	meta, err := ParseMetadata([]byte(out.String()))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalFetch, "ytdlp", "fetch metadata", url, err)
	}
	c.logger.Debug("metadata fetched",
		logging.String("url", url),
		logging.Bool("flat", opts.Flat),
		logging.String("id", meta.String("id")),
	)
	return meta, nil
}

// Download fetches url into opts.Dir using opts.NamingTemplate.
func (c *Client) Download(ctx context.Context, url string, opts Options) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", "url required", nil)
	}
	if strings.TrimSpace(opts.Dir) == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", "destination directory required", nil)
	}
	if strings.TrimSpace(opts.NamingTemplate) == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", "naming template required", nil)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "ytdlp", "download", "create destination", err)
	}

	args := []string{"--no-warnings", "--newline", "--no-playlist", "--paths", opts.Dir, "--output", opts.NamingTemplate}
	args = append(args, c.extraArgs...)
	args = append(args, "--", url)

	ctx, cancel := withTimeout(ctx, c.downloadTimeout)
	defer cancel()

	started := time.Now()
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		if opts.Progress == nil {
			return
		}
		if update, ok := parseProgress(line); ok {
			opts.Progress(update)
		}
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrExternalFetch, "ytdlp", "download", "timed out: "+url, err)
		}
		return services.Wrap(services.ErrExternalFetch, "ytdlp", "download", url, err)
	}
	c.logger.Info("download finished",
		logging.String("url", url),
		logging.String("dir", opts.Dir),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
