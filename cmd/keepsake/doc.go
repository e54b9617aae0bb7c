// Package main hosts the keepsake CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into calls on
// the archiver, the subscription engine, the dedup registry and the catalog
// transfer helpers. It centralizes configuration resolution and component
// wiring so subcommands only parse arguments and render results.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
