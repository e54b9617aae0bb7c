package testsupport

import (
	"path/filepath"
	"testing"

	"keepsake/internal/config"
	"keepsake/internal/logging"
	"keepsake/internal/templates"
)

// ExampleTemplate accepts https://example.com/<name>/... URLs. Categories are
// optional; "music" routes to Music and overrides the subscription suffix.
const ExampleTemplate = `{
  // example.com channels
  "name": "example",
  "domain": {"tld": ["com"], "sld": ["example"], "subdomain": [""]},
  "categories": {
    "enabled": true,
    "required": false,
    "available": {
      "music": {"direct_download": true, "subscription": true, "subscription_url": "tracks", "storage_path": "Music"},
      "shorts": {"direct_download": true, "subscription": false, "subscription_url": "", "storage_path": "Shorts"},
    },
  },
  "storage": {"base_path": "example", "category_storage": true},
  "subscription": {
    "enabled": true,
    "name_locator": 1,
    "url_blueprint": "{scheme}://{subdomain}.{sld}.{tld}/{subscription_name}/{subscription_url}",
    "subscription_url": "videos",
  },
}
`

// TubeTemplate is a YAML descriptor whose URLs always carry a category:
// https://www.tube.org/<category>/<name>/...
const TubeTemplate = `name: tube
domain:
  tld: org
  sld: tube
  subdomain: ["", "www", "m"]
categories:
  enabled: true
  required: true
  segment_index: 1
  available:
    channel:
      direct_download: false
      subscription: true
      subscription_url: ""
      storage_path: channels
    clip:
      direct_download: true
      subscription: false
      subscription_url: ""
      storage_path: clips
storage:
  base_path: tube
  category_storage: true
subscription:
  enabled: true
  name_locator: 2
  url_blueprint: "{scheme}://www.{sld}.{tld}/{category}/{subscription_name}/{subscription_url}"
  subscription_url: ""
item_columns:
  uploader:
    type: text
metadata_columns:
  uploader: uploader
`

// WriteTemplate writes a descriptor into the configured templates directory
// and returns its path.
func WriteTemplate(t testing.TB, cfg *config.Config, fileName, content string) string {
	t.Helper()

	path := filepath.Join(cfg.Paths.TemplatesDir, fileName)
	WriteFile(t, path, content)
	return path
}

// MustLoadTemplates loads the configured templates directory.
func MustLoadTemplates(t testing.TB, cfg *config.Config) *templates.Registry {
	t.Helper()

	reg, err := templates.LoadDir(cfg.Paths.TemplatesDir, logging.NewNop())
	if err != nil {
		t.Fatalf("templates.LoadDir: %v", err)
	}
	return reg
}
