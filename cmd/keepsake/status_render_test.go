package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"keepsake/internal/catalog"
	"keepsake/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Network", statusError, "currently unreachable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Network:", "[ERROR] currently unreachable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Network", statusOK, "reachable", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "yt-dlp", Available: false},
		{Name: "FFmpeg", Available: false, Optional: true, Detail: `binary "ffmpeg" not found`},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] not available") {
		t.Fatalf("expected error detail, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN]") {
		t.Fatalf("expected optional dependency to warn, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "yt-dlp, FFmpeg") {
		t.Fatalf("expected missing summary, got %q", lines[2])
	}
	if !missingRequired(statuses) {
		t.Fatal("expected missing required dependency")
	}
	if missingRequired(statuses[1:]) {
		t.Fatal("optional dependency should not count as required")
	}
}

func TestSubscriptionRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	checked := now.Add(-2 * time.Hour)
	subs := []*catalog.Subscription{
		{ID: 7, SchemeName: "example", DisplayName: "alice", ContentCount: 1200, DownloadedCount: 3, HasNewData: true, LastCheckedAt: &checked},
		{ID: 8, SchemeName: "tube", DisplayName: "bob smith"},
	}
	want := [][]string{
		{"7", "example", "Alice", "1,200", "3", "yes", "2 hours ago"},
		{"8", "tube", "Bob Smith", "0", "0", "no", "never"},
	}
	if diff := cmp.Diff(want, subscriptionRows(subs, now)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitSchemes(t *testing.T) {
	if diff := cmp.Diff([]string{"example", "tube"}, splitSchemes(" example, ,tube ")); diff != "" {
		t.Fatalf("splitSchemes mismatch (-want +got):\n%s", diff)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"ID", "Name", "Note"}, [][]string{{"7", "alice"}}, 0)
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[3], " 7 ") || !strings.Contains(lines[3], "alice") {
		t.Fatalf("unexpected row %q", lines[3])
	}
	if renderTable(nil, [][]string{{"x"}}) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestPrintFailuresSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printFailures(&buf, []string{"URL", "Error"}, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
	printFailures(&buf, []string{"URL", "Error"}, [][]string{{"https://example.com/a", "HTTP 403"}})
	if !strings.Contains(buf.String(), "HTTP 403") {
		t.Fatalf("expected failure row, got %q", buf.String())
	}
}
