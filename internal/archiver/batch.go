package archiver

import (
	"context"

	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// Failure records one URL a batch could not process.
type Failure struct {
	URL  string
	Kind string
	Err  error
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	Archived []*Result
	Failures []Failure
}

// Downloaded counts results that triggered a download.
func (r *BatchReport) Downloaded() int {
	n := 0
	for _, res := range r.Archived {
		if res.Downloaded {
			n++
		}
	}
	return n
}

// ArchiveBatch archives urls in order. A failing URL is recorded and the
// batch continues; only context cancellation stops it early.
func (a *Archiver) ArchiveBatch(ctx context.Context, urls []string) (*BatchReport, error) {
	logger := logging.WithContext(ctx, a.logger)
	report := &BatchReport{}
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := a.Archive(ctx, Request{URL: url})
		if err != nil {
			logging.WarnWithContext(logger, "batch entry failed", "batch_entry_failed",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldImpact, "url skipped"),
			)
			report.Failures = append(report.Failures, Failure{URL: url, Kind: services.Kind(err), Err: err})
			continue
		}
		report.Archived = append(report.Archived, res)
	}
	return report, nil
}

// ArchiveFile archives every URL listed in path, one per line.
func (a *Archiver) ArchiveFile(ctx context.Context, path string) (*BatchReport, error) {
	urls, err := fileutil.ReadLines(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "archiver", "batch", "read url list", err)
	}
	return a.ArchiveBatch(ctx, urls)
}
