package ytdlp_test

import (
	"errors"
	"testing"

	"keepsake/internal/services"
	"keepsake/internal/services/ytdlp"
)

func TestPredictFilename(t *testing.T) {
	meta, err := ytdlp.ParseMetadata([]byte(`{
		"id": "abc123",
		"title": "Live: A/B test?",
		"ext": "mp4",
		"playlist_index": 7,
		"duration": 12.75
	}`))
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{"default template", "%(title)s [%(id)s].%(ext)s", "Live- A-B test [abc123].mp4"},
		{"padded integer", "%(playlist_index)03d - %(id)s.%(ext)s", "007 - abc123.mp4"},
		{"missing field", "%(uploader)s - %(id)s.%(ext)s", "NA - abc123.mp4"},
		{"non numeric integer", "%(title)d.%(ext)s", "NA.mp4"},
		{"float", "%(duration).1f.%(ext)s", "12.8.mp4"},
		{"literal percent", "100%% %(id)s", "100% abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ytdlp.PredictFilename(meta, tc.template)
			if err != nil {
				t.Fatalf("PredictFilename(%q) error: %v", tc.template, err)
			}
			if got != tc.want {
				t.Fatalf("PredictFilename(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestPredictFilenameIsDeterministic(t *testing.T) {
	meta := ytdlp.NewMetadata(map[string]any{"id": "x", "title": "t", "ext": "webm"})
	first, err := ytdlp.PredictFilename(meta, "%(title)s.%(ext)s")
	if err != nil {
		t.Fatalf("PredictFilename: %v", err)
	}
	second, _ := ytdlp.PredictFilename(meta, "%(title)s.%(ext)s")
	if first != second || first != "t.webm" {
		t.Fatalf("predictions differ or wrong: %q %q", first, second)
	}
}

func TestPredictFilenameRejectsEmptyResult(t *testing.T) {
	meta := ytdlp.NewMetadata(nil)
	for _, template := range []string{"", "   ", "%(title)s"} {
		name, err := ytdlp.PredictFilename(meta, template)
		if template == "%(title)s" {
			if err != nil || name != "NA" {
				t.Fatalf("PredictFilename(%q) = %q, %v", template, name, err)
			}
			continue
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("PredictFilename(%q): expected validation error, got %v", template, err)
		}
	}
}
