package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	BaseDir      string `toml:"base_dir"`
	DataDir      string `toml:"data_dir"`
	TemplatesDir string `toml:"templates_dir"`
	DatabasePath string `toml:"database_path"`
	RegistryPath string `toml:"registry_path"`
}

// Downloader contains settings for the external yt-dlp collaborator.
type Downloader struct {
	Binary                 string   `toml:"binary"`
	NamingTemplate         string   `toml:"naming_template"`
	TimeoutSeconds         int      `toml:"timeout_seconds"`
	MetadataTimeoutSeconds int      `toml:"metadata_timeout_seconds"`
	ExtraArgs              []string `toml:"extra_args"`
}

// Subscriptions contains polling cadence settings.
type Subscriptions struct {
	CheckIntervalMinutes int `toml:"check_interval_minutes"`
	RequestsPerMinute    int `toml:"requests_per_minute"`
	WatchIntervalMinutes int `toml:"watch_interval_minutes"`
}

// Liveness configures the reachability probe run before subscription checks.
type Liveness struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for keepsake.
//
// Configuration sections by subsystem:
//   - Paths: storage root, data directory, templates, database, duplicate registry
//   - Downloader: yt-dlp binary, naming template, and timeouts
//   - Subscriptions: poll interval and pacing
//   - Liveness: optional reachability probe
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Downloader    Downloader    `toml:"downloader"`
	Subscriptions Subscriptions `toml:"subscriptions"`
	Liveness      Liveness      `toml:"liveness"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("keepsake.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories keepsake writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.BaseDir, c.Paths.DataDir, c.Paths.TemplatesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}
	return nil
}

// CheckInterval returns the minimum time between two polls of one subscription.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Subscriptions.CheckIntervalMinutes) * time.Minute
}

// WatchInterval returns the pause between runs in watch mode.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Subscriptions.WatchIntervalMinutes) * time.Minute
}

// DownloadTimeout returns the per-download timeout (zero means none).
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Downloader.TimeoutSeconds) * time.Second
}

// MetadataTimeout returns the timeout applied to metadata-only fetches.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Downloader.MetadataTimeoutSeconds) * time.Second
}

// LivenessTimeout returns the fixed timeout for the reachability probe.
func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.Liveness.TimeoutSeconds) * time.Second
}

// LockPath returns the path of the run lock that keeps two runs from overlapping.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "keepsake.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
