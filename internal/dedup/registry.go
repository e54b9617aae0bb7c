package dedup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// Location is one place a piece of content is stored.
type Location struct {
	RecordID int64  `json:"record_id"`
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}

// Path returns the absolute file path of the location.
func (l Location) Path() string {
	return filepath.Join(l.FilePath, l.FileName)
}

func (l Location) same(other Location) bool {
	return l.FileName == other.FileName && l.FilePath == other.FilePath
}

// Entries maps a content hash to the locations holding that content.
type Entries map[string][]Location

// Registry is the on-disk duplicate registry. Writes are serialized by an
// in-process mutex and a lock file shared with other processes.
type Registry struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// OpenRegistry returns a registry backed by path. The file is created on the
// first write.
func OpenRegistry(path string) *Registry {
	return &Registry{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the registry file location.
func (r *Registry) Path() string {
	return r.path
}

// LockPath returns the lock file guarding the registry.
func (r *Registry) LockPath() string {
	return r.path + ".lock"
}

// Load reads the registry. A missing file is an empty registry.
func (r *Registry) Load() (Entries, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Update reads the registry, applies fn and writes the result atomically
// while holding both locks. Nothing is written when fn fails.
func (r *Registry) Update(fn func(Entries) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer func() { _ = r.lock.Unlock() }()

	entries, err := r.read()
	if err != nil {
		return err
	}
	if err := fn(entries); err != nil {
		return err
	}
	return r.write(entries)
}

func (r *Registry) read() (Entries, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return Entries{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	entries := Entries{}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", r.path, err)
	}
	return entries, nil
}

func (r *Registry) write(entries Entries) error {
	for hash, locations := range entries {
		if len(locations) == 0 {
			delete(entries, hash)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(r.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// add appends loc under hash unless the location is already listed.
func (e Entries) add(hash string, loc Location) bool {
	if slices.ContainsFunc(e[hash], loc.same) {
		return false
	}
	e[hash] = append(e[hash], loc)
	return true
}
