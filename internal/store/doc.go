// Package store is the dynamically-schemed SQLite persistence layer every
// other keepsake component is built on.
//
// A Store wraps one database handle opened at process start. Tables are
// described by TableSchema values (usually decoded from embedded JSONC schema
// files), created on first use, and migrated additively when a schema gains
// columns. Queries are expressed as Condition trees of equality tests; table
// and column identifiers are checked against the live schema before any
// statement is built, and values are always bound.
//
// Columns declared as structured hold JSON text; Insert and Update encode
// lists, maps, and structs on the way in and Fetch decodes them back to
// generic values on the way out.
//
// Every engine failure is logged here and returned wrapped in
// services.ErrStorage. A lookup that matches nothing returns a nil Record and
// no error.
package store
