package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"keepsake/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.BaseDir = filepath.Join(base, "archive")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.TemplatesDir = filepath.Join(base, "templates")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "data", "keepsake.db")
	cfgVal.Paths.RegistryPath = filepath.Join(base, "archive", "duplicates.json")
	cfgVal.Subscriptions.RequestsPerMinute = 0
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithCheckInterval overrides the subscription poll interval in minutes.
func WithCheckInterval(minutes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Subscriptions.CheckIntervalMinutes = minutes
	}
}

// WithLivenessURL sets the liveness probe target.
func WithLivenessURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Liveness.URL = url
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the downloader binary is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Downloader.Binary}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
