package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"keepsake/internal/archiver"
	"keepsake/internal/catalog"
	"keepsake/internal/config"
	"keepsake/internal/dedup"
	"keepsake/internal/logging"
	"keepsake/internal/router"
	"keepsake/internal/services"
	"keepsake/internal/services/ytdlp"
	"keepsake/internal/store"
	"keepsake/internal/subscriptions"
	"keepsake/internal/templates"
)

type fetcherFactory func(cfg *config.Config, logger *slog.Logger) (ytdlp.Fetcher, error)

type commandContext struct {
	configFlag *string
	newFetcher fetcherFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, newFetcher fetcherFactory) *commandContext {
	if newFetcher == nil {
		newFetcher = newDownloader
	}
	return &commandContext{
		configFlag: configFlag,
		newFetcher: newFetcher,
	}
}

func newDownloader(cfg *config.Config, logger *slog.Logger) (ytdlp.Fetcher, error) {
	client, err := ytdlp.New(cfg.Downloader.Binary,
		ytdlp.WithTimeouts(cfg.DownloadTimeout(), cfg.MetadataTimeout()),
		ytdlp.WithExtraArgs(cfg.Downloader.ExtraArgs...),
		ytdlp.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// application holds the components one command invocation works with.
type application struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	catalog   *catalog.Catalog
	templates *templates.Registry
	dedup     *dedup.Service
	archiver  *archiver.Archiver
	engine    *subscriptions.Engine
}

// withApp opens the store, wires every component and runs fn with a context
// carrying a fresh correlation id.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(context.Context, *application) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger = logging.WithContext(ctx, logger)

	st, err := store.Open(cfg.Paths.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	cat, err := catalog.Open(ctx, st, logger)
	if err != nil {
		return err
	}
	reg, err := templates.LoadDir(cfg.Paths.TemplatesDir, logger)
	if err != nil {
		return err
	}
	fetcher, err := c.newFetcher(cfg, logger)
	if err != nil {
		return err
	}

	svc := dedup.New(cat, dedup.OpenRegistry(cfg.Paths.RegistryPath), logger)
	arch := archiver.New(archiver.Dependencies{
		Templates:      reg,
		Router:         router.New(cfg.Paths.BaseDir),
		Fetcher:        fetcher,
		Catalog:        cat,
		Dedup:          svc,
		NamingTemplate: cfg.Downloader.NamingTemplate,
		Logger:         logger,
		Progress:       progressPrinter(cmd.OutOrStdout()),
	})
	engine := subscriptions.New(subscriptions.Dependencies{
		Catalog:           cat,
		Templates:         reg,
		Fetcher:           fetcher,
		Archiver:          arch,
		CheckInterval:     cfg.CheckInterval(),
		RequestsPerMinute: cfg.Subscriptions.RequestsPerMinute,
		Logger:            logger,
	})

	return fn(ctx, &application{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		catalog:   cat,
		templates: reg,
		dedup:     svc,
		archiver:  arch,
		engine:    engine,
	})
}

// progressPrinter redraws a single progress line on interactive terminals
// and stays silent otherwise.
func progressPrinter(out io.Writer) func(string, ytdlp.ProgressUpdate) {
	if !shouldColorize(out) {
		return nil
	}
	return func(url string, update ytdlp.ProgressUpdate) {
		switch update.Stage {
		case "Downloading":
			fmt.Fprintf(out, "\r  %5.1f%% %s", update.Percent, url)
		case "Downloaded":
			fmt.Fprintf(out, "\r  100.0%% %s\n", url)
		}
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
