package templates

import (
	"fmt"
	"regexp"
	"strings"

	"keepsake/internal/services"
)

var tokenPattern = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// Synthesize fills blueprint tokens from values. A token whose value is empty
// removes its whole enclosing path segment (between slashes) or host label
// (between dots). Unknown tokens fail synthesis.
//
//	Synthesize("{scheme}://{subdomain}.{sld}.{tld}/{subscription_name}/{subscription_url}", ...)
func Synthesize(blueprint string, values map[string]string) (string, error) {
	if strings.TrimSpace(blueprint) == "" {
		return "", services.Wrap(services.ErrValidation, "templates", "synthesize", "blueprint is empty", nil)
	}

	prefix, rest := "", blueprint
	if idx := strings.Index(blueprint, "://"); idx >= 0 {
		prefix = fill(blueprint[:idx], values) + "://"
		rest = blueprint[idx+3:]
	}

	host, path := rest, ""
	if prefix != "" {
		if idx := strings.Index(rest, "/"); idx >= 0 {
			host, path = rest[:idx], rest[idx:]
		}
	} else {
		host, path = "", rest
	}

	var b strings.Builder
	b.WriteString(prefix)
	if host != "" {
		b.WriteString(strings.Join(keepFilled(strings.Split(host, "."), values), "."))
	}
	if path != "" {
		segments := strings.Split(path, "/")
		kept := make([]string, 0, len(segments))
		for i, segment := range segments {
			// Leading and trailing empty segments carry the slashes.
			if segment == "" && (i == 0 || i == len(segments)-1) {
				kept = append(kept, segment)
				continue
			}
			if elided(segment, values) {
				continue
			}
			kept = append(kept, fill(segment, values))
		}
		b.WriteString(strings.Join(kept, "/"))
	}

	out := b.String()
	if leftover := tokenPattern.FindString(out); leftover != "" {
		return "", services.Wrap(services.ErrValidation, "templates", "synthesize",
			fmt.Sprintf("unresolved token %s in %q", leftover, blueprint), nil)
	}
	if strings.ContainsAny(out, "{}") {
		return "", services.Wrap(services.ErrValidation, "templates", "synthesize",
			fmt.Sprintf("malformed token in %q", blueprint), nil)
	}
	return out, nil
}

func keepFilled(parts []string, values map[string]string) []string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if elided(part, values) {
			continue
		}
		kept = append(kept, fill(part, values))
	}
	return kept
}

// elided reports whether part references a known token without a value.
func elided(part string, values map[string]string) bool {
	for _, match := range tokenPattern.FindAllStringSubmatch(part, -1) {
		if value, known := values[match[1]]; known || isToken(match[1]) {
			if value == "" {
				return true
			}
		}
	}
	return false
}

func fill(part string, values map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(part, func(token string) string {
		name := token[1 : len(token)-1]
		if value, ok := values[name]; ok && value != "" {
			return value
		}
		return token
	})
}

var knownTokens = map[string]struct{}{
	"scheme":            {},
	"subdomain":         {},
	"sld":               {},
	"tld":               {},
	"category":          {},
	"subscription_name": {},
	"subscription_url":  {},
}

func isToken(name string) bool {
	_, ok := knownTokens[name]
	return ok
}
