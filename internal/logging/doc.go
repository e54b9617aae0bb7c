// Package logging assembles structured slog loggers and formatting helpers used
// across keepsake components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so components can tag log lines
// with subscription IDs, scheme names, and the per-run correlation ID. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
