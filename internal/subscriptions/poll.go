package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"keepsake/internal/catalog"
	"keepsake/internal/logging"
	"keepsake/internal/services"
	"keepsake/internal/templates"
)

// RunOptions control a polling run.
type RunOptions struct {
	// Force polls every subscription regardless of the check interval.
	Force bool
	// Schemes limits the run to the given template names.
	Schemes []string
	// SkipDownloads polls without running the missing pass.
	SkipDownloads bool
}

// Run polls subscriptions and downloads missing entries. Subscriptions that
// were already flagged go through the missing pass before polling, so a poll
// that clears the flag never hides entries that were still pending.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: e.now().UTC()}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, report.RunID)
	}
	logger := logging.WithContext(ctx, e.logger)

	subs, err := e.catalog.ListSubscriptions(ctx, opts.Schemes...)
	if err != nil {
		return nil, err
	}
	logger.Info("subscription run started", logging.Int("subscriptions", len(subs)), logging.Bool("force", opts.Force))

	var pending map[int64]bool
	if !opts.SkipDownloads {
		if pending, err = e.missingPass(ctx, subs, report, nil); err != nil {
			return report, err
		}
	}
	polled := make(map[int64]State, len(subs))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := e.poll(ctx, sub, opts.Force)
		report.Polls = append(report.Polls, result)
		polled[sub.ID] = result.State
		if result.Err != nil {
			report.Failures = append(report.Failures, Failure{
				Subscription: sub.DisplayName,
				URL:          sub.CanonicalURL,
				Kind:         services.Kind(result.Err),
				Err:          result.Err,
			})
		}
	}
	if !opts.SkipDownloads {
		// Subscriptions already attempted above are retried only when the
		// poll brought a new snapshot.
		retry := func(sub *catalog.Subscription) bool {
			return !pending[sub.ID] || polled[sub.ID] == StateNewData
		}
		if _, err := e.missingPass(ctx, subs, report, retry); err != nil {
			return report, err
		}
	}

	report.FinishedAt = e.now().UTC()
	logger.Info("subscription run finished",
		logging.Int("new_data", report.Count(StateNewData)),
		logging.Int("unchanged", report.Count(StateNoChange)),
		logging.Int("regressed", report.Count(StateRegressed)),
		logging.Int("skipped", report.Skipped()),
		logging.Int("downloaded", report.Downloaded()),
		logging.Int("failures", len(report.Failures)),
		logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// Poll checks one subscription and persists its new state.
func (e *Engine) Poll(ctx context.Context, sub *catalog.Subscription, force bool) PollResult {
	return e.poll(ctx, sub, force)
}

func (e *Engine) poll(ctx context.Context, sub *catalog.Subscription, force bool) PollResult {
	ctx = services.WithSubscriptionID(services.WithScheme(ctx, sub.SchemeName), sub.ID)
	logger := logging.WithContext(ctx, e.logger)
	result := PollResult{Subscription: sub, State: StateUnchecked, PreviousCount: sub.ContentCount, Count: sub.ContentCount}

	now := e.now().UTC()
	if !force && sub.LastCheckedAt != nil && now.Sub(*sub.LastCheckedAt) < e.checkInterval {
		result.State = StateNoChange
		result.Skipped = true
		logger.Debug("poll skipped, checked recently", logging.String("last_checked_at", sub.LastCheckedAt.Format(time.RFC3339)))
		return result
	}

	entriesPath := ""
	if tpl, ok := e.templates.Named(sub.SchemeName); ok {
		entriesPath = tpl.EntriesPath()
	}
	snap, err := e.fetchSnapshot(ctx, sub.CanonicalURL, entriesPath)
	if err != nil {
		logging.WarnWithContext(logger, "snapshot fetch failed", "subscription_poll_failed",
			logging.String("url", sub.CanonicalURL),
			logging.Error(err),
			logging.String(logging.FieldImpact, "subscription left unchecked"),
		)
		result.Err = err
		return result
	}

	stored := sub.ContentCount
	switch {
	case snap.Count == stored:
		result.State = StateNoChange
		// Entries a missing pass could not fetch stay flagged for the next run.
		sub.HasNewData = sub.HasNewData && sub.DownloadedCount < len(snap.Entries)
	case snap.Count < stored:
		result.State = StateRegressed
		logging.WarnWithContext(logger, "remote listing shrank", "subscription_regressed",
			logging.String("url", sub.CanonicalURL),
			logging.Int("previous_count", stored),
			logging.Int("count", snap.Count),
			logging.String(logging.FieldErrorHint, "entries may have been removed or made private upstream"),
			logging.String(logging.FieldImpact, "no downloads are removed"),
		)
	default:
		result.State = StateNewData
		sub.HasNewData = true
	}
	sub.Previous = sub.Current
	sub.Current = snap
	sub.ContentCount = snap.Count
	checked := snap.FetchedAt
	sub.LastCheckedAt = &checked
	result.Count = snap.Count

	if err := e.catalog.SaveSubscription(ctx, sub); err != nil {
		result.State = StateUnchecked
		result.Err = err
		return result
	}
	logger.Info("subscription polled",
		logging.String("state", string(result.State)),
		logging.Int("previous_count", stored),
		logging.Int("count", snap.Count),
	)
	return result
}

// templateFor returns the template that should handle an entry URL: the
// template it resolves to, or the subscription's own template.
func (e *Engine) templateFor(sub *catalog.Subscription, entryURL string) (*templates.Match, error) {
	if match, err := e.templates.Resolve(entryURL); err == nil {
		return match, nil
	}
	tpl, ok := e.templates.Named(sub.SchemeName)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "subscriptions", sub.SchemeName, "template no longer loaded", nil)
	}
	u, err := templates.ParseURL(entryURL)
	if err != nil {
		return nil, err
	}
	return &templates.Match{Template: tpl, URL: u, Host: templates.SplitHost(u.Hostname())}, nil
}
