package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownloader()
	c.normalizeLiveness()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.BaseDir, err = expandPath(c.Paths.BaseDir); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.TemplatesDir, err = expandPath(c.Paths.TemplatesDir); err != nil {
		return fmt.Errorf("paths.templates_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.RegistryPath) == "" {
		c.Paths.RegistryPath = filepath.Join(c.Paths.BaseDir, defaultRegistryName)
	}
	if c.Paths.RegistryPath, err = expandPath(c.Paths.RegistryPath); err != nil {
		return fmt.Errorf("paths.registry_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownloader() {
	if strings.TrimSpace(c.Downloader.Binary) == "" {
		if value, ok := os.LookupEnv("KEEPSAKE_DOWNLOADER"); ok {
			c.Downloader.Binary = value
		}
	}
	c.Downloader.Binary = strings.TrimSpace(c.Downloader.Binary)
	if c.Downloader.Binary == "" {
		c.Downloader.Binary = defaultDownloaderBinary
	}
	if strings.TrimSpace(c.Downloader.NamingTemplate) == "" {
		c.Downloader.NamingTemplate = defaultNamingTemplate
	}
	args := c.Downloader.ExtraArgs[:0]
	for _, arg := range c.Downloader.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Downloader.ExtraArgs = args
}

func (c *Config) normalizeLiveness() {
	c.Liveness.URL = strings.TrimSpace(c.Liveness.URL)
	if c.Liveness.TimeoutSeconds <= 0 {
		c.Liveness.TimeoutSeconds = defaultLivenessTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
