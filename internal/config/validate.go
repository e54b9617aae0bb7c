package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateSubscriptions(); err != nil {
		return err
	}
	if err := c.validateLiveness(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		return errors.New("paths.base_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TemplatesDir) == "" {
		return errors.New("paths.templates_dir must be set")
	}
	return nil
}

func (c *Config) validateDownloader() error {
	if !strings.Contains(c.Downloader.NamingTemplate, "%(") {
		return fmt.Errorf("downloader.naming_template %q must contain at least one %%(field)s token", c.Downloader.NamingTemplate)
	}
	if strings.ContainsAny(c.Downloader.NamingTemplate, `/\`) {
		return errors.New("downloader.naming_template must be a file name, not a path")
	}
	if c.Downloader.TimeoutSeconds < 0 {
		return errors.New("downloader.timeout_seconds must be >= 0")
	}
	if c.Downloader.MetadataTimeoutSeconds < 0 {
		return errors.New("downloader.metadata_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateSubscriptions() error {
	if c.Subscriptions.CheckIntervalMinutes < 0 {
		return errors.New("subscriptions.check_interval_minutes must be >= 0")
	}
	if c.Subscriptions.RequestsPerMinute < 0 {
		return errors.New("subscriptions.requests_per_minute must be >= 0")
	}
	if c.Subscriptions.WatchIntervalMinutes <= 0 {
		return errors.New("subscriptions.watch_interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLiveness() error {
	if c.Liveness.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Liveness.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("liveness.url %q must be an http(s) URL", c.Liveness.URL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	return nil
}
