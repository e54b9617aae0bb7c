package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"keepsake/internal/config"
	"keepsake/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLiveness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusNoContent)
		case "/moved":
			http.Redirect(w, r, "/down", http.StatusFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name string
		url  string
		pass bool
	}{
		{"2xx passes", srv.URL + "/ok", true},
		{"3xx passes without following", srv.URL + "/moved", true},
		{"5xx fails", srv.URL + "/down", false},
		{"not configured", "", true},
		{"connection refused", "http://127.0.0.1:1/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckLiveness(context.Background(), tt.url, time.Second)
			if result.Passed != tt.pass {
				t.Fatalf("CheckLiveness(%q) passed=%v detail=%q", tt.url, result.Passed, result.Detail)
			}
		})
	}
}

func TestCheckLivenessTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	result := CheckLiveness(context.Background(), srv.URL, 50*time.Millisecond)
	if result.Passed || !strings.Contains(result.Detail, "unreachable") {
		t.Fatalf("expected timeout failure, got %+v", result)
	}
}

func TestCheckTemplates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckTemplates(cfg.Paths.TemplatesDir); result.Passed {
		t.Fatalf("expected empty templates dir to fail, got %+v", result)
	}
	testsupport.WriteTemplate(t, cfg, "example.jsonc", testsupport.ExampleTemplate)
	if result := CheckTemplates(cfg.Paths.TemplatesDir); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	testsupport.WriteTemplate(t, cfg, "broken.json", `{"name": "broken"}`)
	if result := CheckTemplates(cfg.Paths.TemplatesDir); result.Passed || !strings.Contains(result.Detail, "1 invalid") {
		t.Fatalf("expected invalid template to fail, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteTemplate(t, cfg, "example.jsonc", testsupport.ExampleTemplate)

	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesLivenessWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLivenessURL(srv.URL))
	results := RunAll(context.Background(), cfg)
	found := false
	for _, r := range results {
		if r.Name == "Network" {
			found = true
			if !r.Passed {
				t.Errorf("liveness check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected liveness check in results")
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected downloader and ffmpeg statuses, got %+v", statuses)
	}
	if !statuses[0].Available {
		t.Fatalf("expected stubbed downloader to be available: %+v", statuses[0])
	}

	missing := config.Default()
	missing.Downloader.Binary = "clearly-not-present-downloader"
	if statuses := CheckSystemDeps(&missing); statuses[0].Available {
		t.Fatal("expected missing downloader to be unavailable")
	}
}
