package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"keepsake/internal/catalog"
	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// Outcome describes what Save did with a file.
type Outcome string

const (
	// OutcomeInserted means the content was new and a new item was created.
	OutcomeInserted Outcome = "inserted"
	// OutcomeAppended means the file was already catalogued at the same
	// location; only new URLs and tags were recorded.
	OutcomeAppended Outcome = "appended"
	// OutcomeDuplicate means the content already exists elsewhere and the
	// new location was added to the duplicate registry.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeRelocated means the catalogued copy was gone, so the new
	// location replaced it as the item.
	OutcomeRelocated Outcome = "relocated"
	// OutcomeRehashed means the file at a catalogued location changed and
	// its item now carries the new hash.
	OutcomeRehashed Outcome = "rehashed"
)

// Request describes a file to save.
type Request struct {
	// Path is the file on disk.
	Path       string
	URL        string
	Tags       []string
	SchemeName string
	Metadata   map[string]any
	// Extra holds values for template-declared item columns.
	Extra map[string]any
}

// Result reports the item that now represents the saved content.
type Result struct {
	Item    *catalog.Item
	Hash    string
	Outcome Outcome
}

// Service performs hash-based deduplication over the catalog.
type Service struct {
	catalog  *catalog.Catalog
	registry *Registry
	logger   *slog.Logger
}

// New builds a dedup service.
func New(cat *catalog.Catalog, registry *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		catalog:  cat,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "dedup"),
	}
}

// Registry returns the duplicate registry the service writes to.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Save hashes req.Path and records it in the catalog.
func (s *Service) Save(ctx context.Context, req Request) (*Result, error) {
	path, err := filepath.Abs(strings.TrimSpace(req.Path))
	if err != nil || strings.TrimSpace(req.Path) == "" {
		return nil, services.Wrap(services.ErrValidation, "dedup", "save", "file path required", err)
	}
	hash, err := fileutil.HashFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "dedup", "save", path, err)
		}
		return nil, services.Wrap(services.ErrStorage, "dedup", "save", "hash file", err)
	}
	loc := Location{FileName: filepath.Base(path), FilePath: filepath.Dir(path)}
	logger := logging.WithContext(ctx, s.logger)

	existing, err := s.catalog.ItemByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.saveNew(ctx, req, hash, loc)
	}
	if existing.FileName == loc.FileName && existing.FilePath == loc.FilePath {
		if err := s.appendSources(ctx, existing, req); err != nil {
			return nil, err
		}
		logger.Debug("content already catalogued", logging.Int64("item_id", existing.ID), logging.String("path", path))
		return &Result{Item: existing, Hash: hash, Outcome: OutcomeAppended}, nil
	}
	// A row already catalogued at this location describes content the file
	// no longer holds.
	stale, err := s.catalog.ItemByLocation(ctx, loc.FileName, loc.FilePath)
	if err != nil {
		return nil, err
	}
	return s.saveDuplicate(ctx, req, hash, loc, existing, stale)
}

func (s *Service) saveNew(ctx context.Context, req Request, hash string, loc Location) (*Result, error) {
	logger := logging.WithContext(ctx, s.logger)
	current, err := s.catalog.ItemByLocation(ctx, loc.FileName, loc.FilePath)
	if err != nil {
		return nil, err
	}
	if current != nil {
		previous := current.ContentHash
		if err := s.catalog.UpdateHash(ctx, current, hash); err != nil {
			return nil, err
		}
		if err := s.appendSources(ctx, current, req); err != nil {
			return nil, err
		}
		logging.WarnWithContext(logger, "catalogued file content changed", "dedup_rehash",
			logging.Int64("item_id", current.ID),
			logging.String("path", loc.Path()),
			logging.String("previous_hash", previous),
			logging.String(logging.FieldErrorHint, "run keepsake validate to audit other files"),
		)
		return &Result{Item: current, Hash: hash, Outcome: OutcomeRehashed}, nil
	}

	item := &catalog.Item{
		SchemeName:  req.SchemeName,
		FileName:    loc.FileName,
		FilePath:    loc.FilePath,
		ContentHash: hash,
		URLs:        nonEmpty(req.URL),
		Tags:        req.Tags,
		Metadata:    req.Metadata,
		Extra:       req.Extra,
	}
	if _, err := s.catalog.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	logger.Info("item catalogued",
		logging.Int64("item_id", item.ID),
		logging.String("path", loc.Path()),
		logging.String(logging.FieldScheme, req.SchemeName),
	)
	return &Result{Item: item, Hash: hash, Outcome: OutcomeInserted}, nil
}

func (s *Service) saveDuplicate(ctx context.Context, req Request, hash string, loc Location, existing, stale *catalog.Item) (*Result, error) {
	logger := logging.WithContext(ctx, s.logger)
	prune, err := s.catalog.Flag(ctx, catalog.SettingPruneMissingLocations)
	if err != nil {
		return nil, err
	}

	result := &Result{Item: existing, Hash: hash, Outcome: OutcomeDuplicate}
	err = s.registry.Update(func(entries Entries) error {
		if stale != nil {
			if err := s.dropStale(ctx, entries, stale, hash); err != nil {
				return err
			}
		}
		if len(entries[hash]) == 0 {
			entries.add(hash, Location{RecordID: existing.ID, FileName: existing.FileName, FilePath: existing.FilePath})
		}

		kept := entries[hash][:0]
		var pruned []Location
		for _, listed := range entries[hash] {
			if listed.same(loc) || fileutil.Exists(listed.Path()) {
				kept = append(kept, listed)
				continue
			}
			pruned = append(pruned, listed)
		}
		entries[hash] = kept

		existingGone := false
		for _, gone := range pruned {
			logger.Info("pruned missing duplicate location", logging.String("path", gone.Path()))
			if gone.same(Location{FileName: existing.FileName, FilePath: existing.FilePath}) {
				existingGone = true
			}
		}

		if existingGone && prune {
			if err := s.catalog.DeleteItem(ctx, existing.ID); err != nil {
				return err
			}
			item := &catalog.Item{
				SchemeName:  existing.SchemeName,
				FileName:    loc.FileName,
				FilePath:    loc.FilePath,
				ContentHash: hash,
				URLs:        append(append([]string(nil), existing.URLs...), nonEmpty(req.URL)...),
				Tags:        append(append([]string(nil), existing.Tags...), req.Tags...),
				Metadata:    existing.Metadata,
				Extra:       existing.Extra,
			}
			if req.Metadata != nil {
				item.Metadata = req.Metadata
			}
			if _, err := s.catalog.InsertItem(ctx, item); err != nil {
				return err
			}
			result.Item = item
			result.Outcome = OutcomeRelocated
		} else if err := s.appendSources(ctx, existing, req); err != nil {
			return err
		}

		loc.RecordID = result.Item.ID
		entries.add(hash, loc)
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrStorage) || errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrStorage, "dedup", "save", "update duplicate registry", err)
	}

	logger.Info("duplicate content recorded",
		logging.Int64("item_id", result.Item.ID),
		logging.String("path", loc.Path()),
		logging.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// dropStale removes the row for a file whose content was replaced by a copy
// of hash, along with its registry entry under the old hash.
func (s *Service) dropStale(ctx context.Context, entries Entries, stale *catalog.Item, hash string) error {
	if err := s.catalog.DeleteItem(ctx, stale.ID); err != nil {
		return err
	}
	loc := Location{FileName: stale.FileName, FilePath: stale.FilePath}
	entries[stale.ContentHash] = slices.DeleteFunc(entries[stale.ContentHash], loc.same)
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "catalogued file replaced by duplicate content", "dedup_stale_item",
		logging.Int64("item_id", stale.ID),
		logging.String("path", loc.Path()),
		logging.String("previous_hash", stale.ContentHash),
		logging.String("hash", hash),
		logging.String(logging.FieldImpact, "stale item removed; its URLs and tags are no longer catalogued"),
	)
	return nil
}

func (s *Service) appendSources(ctx context.Context, item *catalog.Item, req Request) error {
	if req.URL != "" {
		if _, err := s.catalog.AppendURLs(ctx, item, req.URL); err != nil {
			return fmt.Errorf("append url: %w", err)
		}
	}
	if len(req.Tags) > 0 {
		if _, err := s.catalog.AppendTags(ctx, item, req.Tags...); err != nil {
			return fmt.Errorf("append tags: %w", err)
		}
	}
	return nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
