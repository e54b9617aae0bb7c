package templates

import (
	"fmt"
	"sort"
	"strings"

	"keepsake/internal/services"
)

var (
	requiredTopLevel       = []string{"name", "domain", "categories", "storage"}
	requiredDomain         = []string{"tld", "sld", "subdomain"}
	requiredCategoryFields = []string{"direct_download", "subscription", "subscription_url", "storage_path"}
	requiredSubscription   = []string{"name_locator", "url_blueprint"}
)

// Validate checks a decoded descriptor for structural completeness. It fails
// on the first missing key and names its path.
func Validate(doc map[string]any) error {
	if doc == nil {
		return invalid("", "descriptor is empty")
	}
	if err := requireKeys(doc, "", requiredTopLevel); err != nil {
		return err
	}
	if name, ok := doc["name"].(string); !ok || strings.TrimSpace(name) == "" {
		return invalid("name", "must be a non-empty string")
	}

	domain, err := section(doc, "domain", "domain")
	if err != nil {
		return err
	}
	if err := requireKeys(domain, "domain", requiredDomain); err != nil {
		return err
	}

	categories, err := section(doc, "categories", "categories")
	if err != nil {
		return err
	}
	enabled, err := flag(categories, "categories.enabled")
	if err != nil {
		return err
	}
	if enabled {
		if err := requireKeys(categories, "categories", []string{"available"}); err != nil {
			return err
		}
		available, err := section(categories, "available", "categories.available")
		if err != nil {
			return err
		}
		names := make([]string, 0, len(available))
		for name := range available {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			path := "categories.available." + name
			cat, ok := available[name].(map[string]any)
			if !ok {
				return invalid(path, "must be an object")
			}
			if err := requireKeys(cat, path, requiredCategoryFields); err != nil {
				return err
			}
		}
	}

	if _, err := section(doc, "storage", "storage"); err != nil {
		return err
	}

	if _, ok := doc["subscription"]; ok {
		subscription, err := section(doc, "subscription", "subscription")
		if err != nil {
			return err
		}
		enabled, err := flag(subscription, "subscription.enabled")
		if err != nil {
			return err
		}
		if enabled {
			if err := requireKeys(subscription, "subscription", requiredSubscription); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireKeys(doc map[string]any, prefix string, keys []string) error {
	for _, key := range keys {
		if _, ok := doc[key]; !ok {
			return invalid(join(prefix, key), "missing required key")
		}
	}
	return nil
}

func section(doc map[string]any, key, path string) (map[string]any, error) {
	value, ok := doc[key].(map[string]any)
	if !ok {
		return nil, invalid(path, "must be an object")
	}
	return value, nil
}

func flag(doc map[string]any, path string) (bool, error) {
	key := path[strings.LastIndex(path, ".")+1:]
	raw, ok := doc[key]
	if !ok {
		return false, nil
	}
	value, ok := raw.(bool)
	if !ok {
		return false, invalid(path, "must be a boolean")
	}
	return value, nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func invalid(path, reason string) error {
	if path == "" {
		return fmt.Errorf("%w: %s", services.ErrValidation, reason)
	}
	return fmt.Errorf("%w: %s: %s", services.ErrValidation, path, reason)
}
