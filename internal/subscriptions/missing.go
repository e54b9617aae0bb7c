package subscriptions

import (
	"context"

	"keepsake/internal/archiver"
	"keepsake/internal/catalog"
	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// missingPass runs DownloadMissing for flagged subscriptions accepted by
// include and reports which ones it attempted.
func (e *Engine) missingPass(ctx context.Context, subs []*catalog.Subscription, report *Report, include func(*catalog.Subscription) bool) (map[int64]bool, error) {
	attempted := make(map[int64]bool)
	for _, sub := range subs {
		if !sub.HasNewData || (include != nil && !include(sub)) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return attempted, err
		}
		attempted[sub.ID] = true
		result, failures := e.DownloadMissing(ctx, sub)
		report.Missing = append(report.Missing, result)
		report.Failures = append(report.Failures, failures...)
	}
	return attempted, nil
}

// DownloadMissing downloads every entry of the subscription's current
// snapshot that is not archived yet. Entries already catalogued, recorded at
// their predicted location, or present on disk are counted as present. The
// new-data flag is cleared only when every entry succeeded.
func (e *Engine) DownloadMissing(ctx context.Context, sub *catalog.Subscription) (MissingResult, []Failure) {
	ctx = services.WithSubscriptionID(services.WithScheme(ctx, sub.SchemeName), sub.ID)
	logger := logging.WithContext(ctx, e.logger)
	result := MissingResult{Subscription: sub}
	var failures []Failure

	fail := func(url string, err error) {
		result.Failed++
		failures = append(failures, Failure{Subscription: sub.DisplayName, URL: url, Kind: services.Kind(err), Err: err})
		logging.WarnWithContext(logger, "entry not downloaded", "subscription_entry_failed",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry retried on the next run"),
		)
	}

	var entries []catalog.Entry
	if sub.Current != nil {
		entries = sub.Current.Entries
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		item, err := e.catalog.ItemByURL(ctx, entry.URL)
		if err != nil {
			fail(entry.URL, err)
			continue
		}
		if item != nil {
			result.Present++
			continue
		}

		match, err := e.templateFor(sub, entry.URL)
		if err != nil {
			fail(entry.URL, err)
			continue
		}
		req := archiver.Request{URL: entry.URL, Subscription: sub.DisplayName, Match: match}
		plan, err := e.archiver.Prepare(ctx, req)
		if err != nil {
			fail(entry.URL, err)
			continue
		}

		known, err := e.catalog.ItemByLocation(ctx, plan.FileName, plan.Dir)
		if err != nil {
			fail(entry.URL, err)
			continue
		}
		if known != nil {
			if _, err := e.catalog.AppendURLs(ctx, known, entry.URL); err != nil {
				fail(entry.URL, err)
				continue
			}
			result.Present++
			continue
		}

		onDisk := fileutil.Exists(plan.Path())
		if _, err := e.archiver.Execute(ctx, req, plan); err != nil {
			fail(entry.URL, err)
			continue
		}
		if onDisk {
			result.Present++
		} else {
			result.Downloaded++
		}
	}
	if err := ctx.Err(); err != nil {
		fail(sub.CanonicalURL, err)
	}

	sub.DownloadedCount = result.Present + result.Downloaded
	if result.Failed == 0 {
		sub.HasNewData = false
	}
	if err := e.catalog.SaveSubscription(ctx, sub); err != nil {
		fail(sub.CanonicalURL, err)
	}
	logger.Info("missing pass finished",
		logging.Int("present", result.Present),
		logging.Int("downloaded", result.Downloaded),
		logging.Int("failed", result.Failed),
	)
	return result, failures
}
