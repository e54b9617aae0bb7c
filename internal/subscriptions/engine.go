package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"keepsake/internal/archiver"
	"keepsake/internal/catalog"
	"keepsake/internal/logging"
	"keepsake/internal/services"
	"keepsake/internal/services/ytdlp"
	"keepsake/internal/templates"
	"keepsake/internal/textutil"
)

const (
	suggestionThreshold = 0.3
	suggestionLimit     = 3
)

// Dependencies wires an Engine.
type Dependencies struct {
	Catalog   *catalog.Catalog
	Templates *templates.Registry
	Fetcher   ytdlp.Fetcher
	Archiver  *archiver.Archiver
	// CheckInterval is the minimum time between two polls of the same
	// subscription unless forced.
	CheckInterval time.Duration
	// RequestsPerMinute paces snapshot fetches. Zero disables pacing.
	RequestsPerMinute int
	Logger            *slog.Logger
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Engine manages subscriptions and their polling.
type Engine struct {
	catalog       *catalog.Catalog
	templates     *templates.Registry
	fetcher       ytdlp.Fetcher
	archiver      *archiver.Archiver
	checkInterval time.Duration
	limiter       *rate.Limiter
	logger        *slog.Logger
	now           func() time.Time
}

// New builds an Engine.
func New(deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if deps.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(deps.RequestsPerMinute))
	}
	return &Engine{
		catalog:       deps.Catalog,
		templates:     deps.Templates,
		fetcher:       deps.Fetcher,
		archiver:      deps.Archiver,
		checkInterval: deps.CheckInterval,
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logging.NewComponentLogger(logger, "subscriptions"),
		now:           now,
	}
}

// Add subscribes to the listing rawURL belongs to. The URL is resolved to
// its template, the canonical listing URL is synthesized, and an initial
// snapshot is fetched. New subscriptions start flagged with new data so the
// next run downloads their entries.
func (e *Engine) Add(ctx context.Context, rawURL string) (*catalog.Subscription, error) {
	rawURL = strings.TrimSpace(rawURL)
	match, err := e.templates.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	tpl := match.Template
	ctx = services.WithScheme(ctx, tpl.Name)
	logger := logging.WithContext(ctx, e.logger)

	if !tpl.Subscription.Enabled {
		return nil, services.Wrap(services.ErrValidation, "subscriptions", tpl.Name, "template does not support subscriptions", nil)
	}
	if name, cat, ok := match.Category(); ok {
		if !cat.Subscription {
			return nil, services.Wrap(services.ErrValidation, "subscriptions", tpl.Name,
				fmt.Sprintf("category %q does not support subscriptions", name), nil)
		}
	} else if tpl.Categories.Enabled && tpl.Categories.Required {
		segment, _ := match.CategoryName()
		return nil, services.Wrap(services.ErrValidation, "subscriptions", tpl.Name,
			fmt.Sprintf("category required but %q is not declared", segment), nil)
	}

	name, err := match.SubscriptionName()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "subscriptions", tpl.Name, "extract subscription name", err)
	}
	canonical, err := match.SubscriptionURL()
	if err != nil {
		return nil, err
	}

	for _, candidate := range []string{canonical, rawURL} {
		existing, err := e.catalog.SubscriptionByURL(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, services.Wrap(services.ErrValidation, "subscriptions", tpl.Name,
				fmt.Sprintf("already subscribed as #%d (%s)", existing.ID, existing.CanonicalURL), nil)
		}
	}

	snap, err := e.fetchSnapshot(ctx, canonical, tpl.EntriesPath())
	if err != nil {
		return nil, err
	}
	checked := snap.FetchedAt
	sub := &catalog.Subscription{
		SchemeName:    tpl.Name,
		DisplayName:   name,
		CanonicalURL:  canonical,
		SourceURL:     rawURL,
		ContentCount:  snap.Count,
		LastCheckedAt: &checked,
		HasNewData:    true,
		Current:       snap,
	}
	if _, err := e.catalog.InsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	logger.Info("subscription added",
		logging.Int64(logging.FieldSubscriptionID, sub.ID),
		logging.String("name", name),
		logging.String("url", canonical),
		logging.Int("count", snap.Count),
	)
	return sub, nil
}

// Remove deletes the subscription identified by ref (ID, URL or name).
// Catalogued items are kept. When nothing matches, the error suggests
// similar subscription names.
func (e *Engine) Remove(ctx context.Context, ref string) (*catalog.Subscription, error) {
	sub, err := e.catalog.FindSubscription(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		msg := fmt.Sprintf("no subscription matches %q", ref)
		if hints, err := e.suggest(ctx, ref); err == nil && len(hints) > 0 {
			msg += "; did you mean " + strings.Join(hints, ", ") + "?"
		}
		return nil, services.Wrap(services.ErrNotFound, "subscriptions", "remove", msg, nil)
	}
	if _, err := e.catalog.DeleteSubscription(ctx, sub.ID); err != nil {
		return nil, err
	}
	logging.WithContext(ctx, e.logger).Info("subscription removed",
		logging.Int64(logging.FieldSubscriptionID, sub.ID),
		logging.String("name", sub.DisplayName),
	)
	return sub, nil
}

func (e *Engine) suggest(ctx context.Context, ref string) ([]string, error) {
	subs, err := e.catalog.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]string, 0, len(subs)*2)
	for _, sub := range subs {
		candidates = append(candidates, sub.DisplayName, sub.CanonicalURL)
	}
	return textutil.Suggest(ref, candidates, suggestionThreshold, suggestionLimit), nil
}

// List returns subscriptions, optionally limited to the given template names.
func (e *Engine) List(ctx context.Context, schemes ...string) ([]*catalog.Subscription, error) {
	return e.catalog.ListSubscriptions(ctx, schemes...)
}

// fetchSnapshot retrieves a flat listing, paced by the limiter.
func (e *Engine) fetchSnapshot(ctx context.Context, url, entriesPath string) (*catalog.Snapshot, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	meta, err := e.fetcher.FetchMetadata(ctx, url, ytdlp.Options{Flat: true})
	if err != nil {
		return nil, err
	}
	entries, err := meta.Entries(entriesPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "subscriptions", "snapshot", url, err)
	}
	count, err := meta.Count(entriesPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "subscriptions", "snapshot", url, err)
	}
	snap := &catalog.Snapshot{Count: count, Entries: make([]catalog.Entry, 0, len(entries)), FetchedAt: e.now().UTC()}
	for _, entry := range entries {
		snap.Entries = append(snap.Entries, catalog.Entry{ID: entry.ID, URL: entry.URL, Title: entry.Title})
	}
	return snap, nil
}
