package templates

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// Registry holds every template loaded from a directory.
type Registry struct {
	templates map[string]*Template
	order     []string
	invalid   map[string]error
	logger    *slog.Logger
}

// LoadDir reads every descriptor in dir. Invalid descriptors are logged and
// recorded but do not fail the load; a missing directory yields an empty
// registry.
func LoadDir(dir string, logger *slog.Logger) (*Registry, error) {
	reg := &Registry{
		templates: make(map[string]*Template),
		invalid:   make(map[string]error),
		logger:    logging.NewComponentLogger(logger, "templates"),
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.WarnWithContext(reg.logger, "templates directory missing", "templates_dir_missing",
				logging.String("dir", dir),
				logging.String(logging.FieldErrorHint, "create the directory and add one descriptor per site"),
				logging.String(logging.FieldImpact, "no URL can be resolved"),
			)
			return reg, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "templates", "load", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !supportedExt(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		key := strings.TrimSuffix(name, filepath.Ext(name))
		if _, dup := reg.templates[key]; dup {
			logging.WarnWithContext(reg.logger, "duplicate template name", "template_duplicate",
				logging.String("path", path),
				logging.String(logging.FieldErrorHint, "keep one descriptor per site name"),
				logging.String(logging.FieldImpact, "later descriptor ignored"),
			)
			continue
		}
		tpl, err := LoadFile(path)
		if err != nil {
			reg.invalid[key] = err
			logging.WarnWithContext(reg.logger, "template rejected", "template_invalid",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the descriptor and rerun"),
				logging.String(logging.FieldImpact, "URLs for this site will not resolve"),
			)
			continue
		}
		reg.templates[key] = tpl
		reg.order = append(reg.order, key)
	}
	reg.logger.Debug("templates loaded",
		logging.Int("valid", len(reg.order)),
		logging.Int("invalid", len(reg.invalid)),
	)
	return reg, nil
}

// LoadFile decodes and validates a single descriptor.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "templates", "read", path, err)
	}
	doc, err := decodeDocument(filepath.Ext(path), data)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "templates", "decode", path, err)
	}
	key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(key, path, doc)
}

// Parse validates a decoded descriptor and converts it to a Template.
func Parse(key, source string, doc map[string]any) (*Template, error) {
	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "templates", key, "re-encode descriptor", err)
	}
	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, services.Wrap(services.ErrValidation, "templates", key, "decode descriptor", err)
	}
	tpl.Key = key
	tpl.Source = source
	if err := tpl.checkTyped(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

func decodeDocument(ext string, data []byte) (map[string]any, error) {
	doc := map[string]any{}
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(standardized, &doc); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported descriptor extension %q", ext)
	}
	return doc, nil
}

// Get returns the template loaded from the given file-name stem.
func (r *Registry) Get(key string) (*Template, bool) {
	tpl, ok := r.templates[key]
	return tpl, ok
}

// Named returns the template whose name field is name, preferring the
// template loaded from a file of the same stem.
func (r *Registry) Named(name string) (*Template, bool) {
	if tpl, ok := r.templates[name]; ok && tpl.Name == name {
		return tpl, true
	}
	for _, key := range r.order {
		if tpl := r.templates[key]; tpl.Name == name {
			return tpl, true
		}
	}
	return nil, false
}

// All returns valid templates in lexical file-name order.
func (r *Registry) All() []*Template {
	out := make([]*Template, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.templates[key])
	}
	return out
}

// Invalid returns the load error for every rejected descriptor, keyed by
// file-name stem.
func (r *Registry) Invalid() map[string]error {
	out := make(map[string]error, len(r.invalid))
	for key, err := range r.invalid {
		out[key] = err
	}
	return out
}
