// Package dedup identifies downloaded files by content hash and keeps the
// catalog free of duplicate items.
//
// Save hashes a freshly downloaded file and either inserts a new item,
// appends the source URL to the item that already holds the same bytes, or
// records the extra location in the duplicate registry file. Verify rehashes
// every catalogued file and reports drift between disk and catalog.
package dedup
