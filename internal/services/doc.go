// Package services defines shared utilities consumed by the archiving
// components and the external downloader integration.
//
// Key responsibilities:
//   - Context helpers that stamp subscription IDs, scheme names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failures
//     classifiable (validation, not found, storage, external fetch) as they
//     cross package boundaries.
//
// Subpackages wrap external tools behind small, testable interfaces.
package services
