package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keepsake/internal/config"
	"keepsake/internal/services/ytdlp"
	"keepsake/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	fetcher    *testsupport.FakeFetcher
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "keepsake", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)
	testsupport.WriteTemplate(t, cfg, "example.jsonc", testsupport.ExampleTemplate)

	return &cliTestEnv{
		cfg:        cfg,
		fetcher:    testsupport.NewFakeFetcher(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWith(func(*config.Config, *slog.Logger) (ytdlp.Fetcher, error) {
		return env.fetcher, nil
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
base_dir = %q
data_dir = %q
templates_dir = %q
database_path = %q
registry_path = %q

[subscriptions]
check_interval_minutes = %d
requests_per_minute = 0

[liveness]
url = %q

[logging]
level = "error"
`,
		cfg.Paths.BaseDir,
		cfg.Paths.DataDir,
		cfg.Paths.TemplatesDir,
		cfg.Paths.DatabasePath,
		cfg.Paths.RegistryPath,
		cfg.Subscriptions.CheckIntervalMinutes,
		cfg.Liveness.URL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
}
