package subscriptions

import (
	"context"

	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// AddBatch adds every URL in order. Failures are collected and the batch
// continues.
func (e *Engine) AddBatch(ctx context.Context, urls []string) (*AddReport, error) {
	logger := logging.WithContext(ctx, e.logger)
	report := &AddReport{}
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sub, err := e.Add(ctx, url)
		if err != nil {
			logging.WarnWithContext(logger, "subscription not added", "subscription_add_failed",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldImpact, "url skipped"),
			)
			report.Failures = append(report.Failures, Failure{URL: url, Kind: services.Kind(err), Err: err})
			continue
		}
		report.Added = append(report.Added, sub)
	}
	return report, nil
}

// AddFile adds every URL listed in path, one per line.
func (e *Engine) AddFile(ctx context.Context, path string) (*AddReport, error) {
	urls, err := fileutil.ReadLines(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "subscriptions", "batch", "read url list", err)
	}
	return e.AddBatch(ctx, urls)
}
