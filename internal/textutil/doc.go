// Package textutil provides text helpers for file naming and fuzzy name
// lookups.
//
// The primary use cases are:
//   - Sanitizing predicted file names and subscription path segments
//   - Suggesting the closest known name when a lookup misses
//
// Fingerprints are character-trigram frequency vectors, so near-miss spellings
// of a subscription or template name still score as similar.
package textutil
