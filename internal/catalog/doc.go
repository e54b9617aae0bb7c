// Package catalog exposes keepsake's typed records (items, subscriptions, and
// settings) on top of the generic store.
//
// Open materializes the three tables from embedded JSONC schema files and
// seeds the settings defaults. Templates that declare extra item columns
// extend the items table through ExtendItems; existing columns are never
// touched.
//
// Lookups that match nothing return nil without an error. Export and import
// move flat JSON arrays of items or subscriptions between databases; export
// files are written atomically.
package catalog
