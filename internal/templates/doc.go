// Package templates loads declarative per-site descriptors and matches URLs
// against them.
//
// Each file in the templates directory describes one site: which hosts it
// accepts, how the URL path maps to categories and subscription names, where
// downloads are stored, and how a subscription URL is synthesized from a
// blueprint. Descriptors may be JSON, JSONC, YAML, or TOML. Every file is
// validated on load and invalid files are reported rather than used.
//
// Resolve first tries the template whose file name equals the URL's
// second-level domain, then scans the rest in lexical file-name order. The
// first template whose domain sets accept the host wins.
package templates
