package dedup

import (
	"context"
	"path/filepath"
	"strings"

	"keepsake/internal/catalog"
	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// partialSuffixes mark in-flight downloader output that is never catalogued.
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".lock"}

// Mismatch is a catalogued file whose bytes no longer match its hash.
type Mismatch struct {
	Item   *catalog.Item
	Actual string
}

// Report summarizes a Verify run.
type Report struct {
	Checked      int
	Missing      []*catalog.Item
	Pruned       int
	Mismatched   []Mismatch
	Unregistered []string
}

// Clean reports whether Verify found nothing to act on.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0 && len(r.Unregistered) == 0
}

// Verify rehashes every catalogued file. Missing files are removed from the
// catalog when the prune setting allows it. Files under baseDir that no item
// points at are listed as unregistered.
func (s *Service) Verify(ctx context.Context, baseDir string) (*Report, error) {
	logger := logging.WithContext(ctx, s.logger)
	prune, err := s.catalog.Flag(ctx, catalog.SettingPruneMissingLocations)
	if err != nil {
		return nil, err
	}
	items, err := s.catalog.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	known := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		path := item.Location()
		known[filepath.Clean(path)] = struct{}{}

		if !fileutil.Exists(path) {
			report.Missing = append(report.Missing, item)
			if prune {
				if err := s.catalog.DeleteItem(ctx, item.ID); err != nil {
					return report, err
				}
				report.Pruned++
			}
			continue
		}
		actual, err := fileutil.HashFile(path)
		if err != nil {
			return report, services.Wrap(services.ErrStorage, "dedup", "verify", "hash "+path, err)
		}
		if actual != item.ContentHash {
			report.Mismatched = append(report.Mismatched, Mismatch{Item: item, Actual: actual})
		}
	}

	registryPath := filepath.Clean(s.registry.Path())
	lockPath := filepath.Clean(s.registry.LockPath())
	files, err := fileutil.ListFiles(baseDir, func(path string) bool {
		if path == registryPath || path == lockPath {
			return true
		}
		for _, suffix := range partialSuffixes {
			if strings.HasSuffix(path, suffix) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return report, services.Wrap(services.ErrStorage, "dedup", "verify", "walk "+baseDir, err)
	}
	for _, file := range files {
		if _, ok := known[filepath.Clean(file)]; !ok {
			report.Unregistered = append(report.Unregistered, file)
		}
	}

	logger.Info("verification finished",
		logging.Int("checked", report.Checked),
		logging.Int("missing", len(report.Missing)),
		logging.Int("pruned", report.Pruned),
		logging.Int("mismatched", len(report.Mismatched)),
		logging.Int("unregistered", len(report.Unregistered)),
	)
	return report, nil
}
