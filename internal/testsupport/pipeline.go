package testsupport

import (
	"testing"

	"keepsake/internal/archiver"
	"keepsake/internal/catalog"
	"keepsake/internal/config"
	"keepsake/internal/dedup"
	"keepsake/internal/logging"
	"keepsake/internal/router"
	"keepsake/internal/templates"
)

// Pipeline bundles the components behind a download for tests.
type Pipeline struct {
	Config    *config.Config
	Catalog   *catalog.Catalog
	Templates *templates.Registry
	Fetcher   *FakeFetcher
	Dedup     *dedup.Service
	Archiver  *archiver.Archiver
}

// NewPipeline wires the archiver against a fake fetcher. Templates are
// loaded from the configured directory, so write them first.
func NewPipeline(t testing.TB, cfg *config.Config, fetcher *FakeFetcher) *Pipeline {
	t.Helper()

	if fetcher == nil {
		fetcher = NewFakeFetcher()
	}
	cat := MustOpenCatalog(t, cfg)
	reg := MustLoadTemplates(t, cfg)
	svc := dedup.New(cat, dedup.OpenRegistry(cfg.Paths.RegistryPath), logging.NewNop())
	arch := archiver.New(archiver.Dependencies{
		Templates:      reg,
		Router:         router.New(cfg.Paths.BaseDir),
		Fetcher:        fetcher,
		Catalog:        cat,
		Dedup:          svc,
		NamingTemplate: cfg.Downloader.NamingTemplate,
		Logger:         logging.NewNop(),
	})
	return &Pipeline{
		Config:    cfg,
		Catalog:   cat,
		Templates: reg,
		Fetcher:   fetcher,
		Dedup:     svc,
		Archiver:  arch,
	}
}
