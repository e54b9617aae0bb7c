// Package router derives the destination directory for a download from its
// resolved template.
package router

import (
	"fmt"
	"path/filepath"
	"strings"

	"keepsake/internal/services"
	"keepsake/internal/templates"
	"keepsake/internal/textutil"
)

// Options adjust a single routing decision.
type Options struct {
	// Subscription is the subscription name for downloads triggered by a
	// subscription; it becomes the last path segment. Empty for one-off
	// downloads.
	Subscription string
}

// Router composes destination paths under a fixed base directory.
type Router struct {
	baseDir string
}

// New returns a Router rooted at baseDir.
func New(baseDir string) *Router {
	return &Router{baseDir: filepath.Clean(baseDir)}
}

// Route returns the absolute directory a download for m belongs in:
// base directory, the template's base path, the category storage path, then
// the subscription segment. An unmatched category falls back to the parent
// path unless the template requires one.
func (r *Router) Route(m *templates.Match, opts Options) (string, error) {
	if m == nil || m.Template == nil {
		return "", services.Wrap(services.ErrValidation, "router", "route", "no template match", nil)
	}
	tpl := m.Template
	parts := []string{r.baseDir}

	if base := strings.TrimSpace(tpl.Storage.BasePath); base != "" {
		rel, err := relative(base)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "router", tpl.Name, "storage.base_path", err)
		}
		parts = append(parts, rel)
	}

	if tpl.Categories.Enabled {
		name, cat, ok := m.Category()
		switch {
		case ok && tpl.Storage.CategoryStorage:
			storagePath := cat.StoragePath
			if strings.TrimSpace(storagePath) == "" {
				storagePath = textutil.SanitizeSegment(name)
			}
			rel, err := relative(storagePath)
			if err != nil {
				return "", services.Wrap(services.ErrValidation, "router", tpl.Name, "storage_path for "+name, err)
			}
			parts = append(parts, rel)
		case !ok && tpl.Categories.Required:
			segment, _ := m.CategoryName()
			return "", services.Wrap(services.ErrValidation, "router", tpl.Name,
				fmt.Sprintf("category required but %q is not declared in %s", segment, m.URL.Path), nil)
		}
	}

	if sub := strings.TrimSpace(opts.Subscription); sub != "" {
		parts = append(parts, textutil.SanitizeSegment(sub))
	}

	dest, err := filepath.Abs(filepath.Join(parts...))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "router", tpl.Name, "resolve destination", err)
	}
	return dest, nil
}

// relative cleans a template-provided path and rejects paths that would
// leave the base directory.
func relative(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimSpace(path)))
	if filepath.IsAbs(cleaned) {
		cleaned = strings.TrimLeft(cleaned, string(filepath.Separator))
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the base directory", path)
	}
	if cleaned == "" {
		cleaned = "."
	}
	return cleaned, nil
}
