// Package config loads, normalizes, and validates keepsake configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the KEEPSAKE_DOWNLOADER
// environment fallback. The Config type centralizes every knob the CLI
// needs, so storage, template, and database locations are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
