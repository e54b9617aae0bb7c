package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashFileIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	big := strings.Repeat("keepsake", 100_000)
	if err := os.WriteFile(a, []byte(big), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(big), 0o644); err != nil {
		t.Fatal(err)
	}

	ha, err := HashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := HashFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("identical content hashed differently: %s vs %s", ha, hb)
	}
	if len(ha) != 64 {
		t.Fatalf("expected hex sha256, got %q", ha)
	}

	if err := os.WriteFile(b, []byte(big+"!"), 0o644); err != nil {
		t.Fatal(err)
	}
	hb, err = HashFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha == hb {
		t.Fatal("different content produced the same hash")
	}
}

func TestHashFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Fatalf("HashFile(empty) = %s, want %s", got, want)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if Exists(path) {
		t.Fatal("missing file reported as existing")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Fatal("expected file to exist")
	}
	if Exists(dir) {
		t.Fatal("directory must not count as a file")
	}
}

func TestListFilesSkipsHiddenAndFiltered(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"b/2.mp4", "a/1.mp4", ".cache/x", "a/.part", "skip/3.mp4", "duplicates.json"} {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(rel), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := ListFiles(root, func(path string) bool {
		return filepath.Base(path) == "skip" || filepath.Base(path) == "duplicates.json"
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(root, "a", "1.mp4"), filepath.Join(root, "b", "2.mp4")}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("ListFiles = %v, want %v", files, want)
	}

	none, err := ListFiles(filepath.Join(root, "missing"), nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no files for missing root, got %v %v", none, err)
	}
}

func TestReadLinesSkipsBlankAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# queue\nhttps://example.com/a\n\n   https://example.com/b  \n#skip\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "https://example.com/a" || lines[1] != "https://example.com/b" {
		t.Fatalf("unexpected lines %q", lines)
	}
	if _, err := ReadLines(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
