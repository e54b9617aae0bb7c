package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"keepsake/internal/services"
	"keepsake/internal/store"
)

// InsertSubscription stores a new subscription and assigns its ID.
func (c *Catalog) InsertSubscription(ctx context.Context, sub *Subscription) (int64, error) {
	if sub == nil {
		return 0, errors.New("subscription is nil")
	}
	if strings.TrimSpace(sub.CanonicalURL) == "" || strings.TrimSpace(sub.SchemeName) == "" {
		return 0, services.Wrap(services.ErrValidation, "catalog", "insert subscription", "scheme and canonical URL are required", nil)
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	id, err := c.store.Insert(ctx, tableSubscriptions, store.Record{
		"scheme_name":        sub.SchemeName,
		"display_name":       sub.DisplayName,
		"canonical_path":     sub.CanonicalURL,
		"user_supplied_path": sub.SourceURL,
		"content_count":      sub.ContentCount,
		"downloaded_count":   sub.DownloadedCount,
		"last_checked_at":    timeValue(sub.LastCheckedAt),
		"has_new_data":       sub.HasNewData,
		"current_snapshot":   snapshotValue(sub.Current),
		"previous_snapshot":  snapshotValue(sub.Previous),
		"created_at":         sub.CreatedAt,
	})
	if err != nil {
		return 0, err
	}
	sub.ID = id
	return id, nil
}

// SaveSubscription persists the mutable poll state of a subscription.
func (c *Catalog) SaveSubscription(ctx context.Context, sub *Subscription) error {
	affected, err := c.store.Update(ctx, tableSubscriptions, store.Record{
		"display_name":      sub.DisplayName,
		"content_count":     sub.ContentCount,
		"downloaded_count":  sub.DownloadedCount,
		"last_checked_at":   timeValue(sub.LastCheckedAt),
		"has_new_data":      sub.HasNewData,
		"current_snapshot":  snapshotValue(sub.Current),
		"previous_snapshot": snapshotValue(sub.Previous),
	}, store.Where(store.Equals("id", sub.ID)))
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "save subscription", fmt.Sprintf("subscription %d", sub.ID), nil)
	}
	return nil
}

func (c *Catalog) fetchSubscription(ctx context.Context, cond store.Condition) (*Subscription, error) {
	rec, err := c.store.FetchOne(ctx, tableSubscriptions, store.Query{Where: cond, Extra: "ORDER BY id"})
	if err != nil {
		return nil, err
	}
	return subscriptionFromRecord(rec), nil
}

// SubscriptionByID fetches a subscription by identifier.
func (c *Catalog) SubscriptionByID(ctx context.Context, id int64) (*Subscription, error) {
	return c.fetchSubscription(ctx, store.Equals("id", id))
}

// SubscriptionByURL fetches a subscription by canonical or user-supplied URL.
func (c *Catalog) SubscriptionByURL(ctx context.Context, url string) (*Subscription, error) {
	return c.fetchSubscription(ctx, store.Or(
		store.Equals("canonical_path", url),
		store.Equals("user_supplied_path", url),
	))
}

// FindSubscription resolves a reference that may be an ID, a URL, or a
// display name.
func (c *Catalog) FindSubscription(ctx context.Context, ref string) (*Subscription, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if sub, err := c.SubscriptionByID(ctx, id); err != nil || sub != nil {
			return sub, err
		}
	}
	if strings.Contains(ref, "://") {
		return c.SubscriptionByURL(ctx, ref)
	}
	return c.fetchSubscription(ctx, store.Equals("display_name", ref))
}

// ListSubscriptions returns subscriptions ordered by ID, optionally limited to
// the given scheme names.
func (c *Catalog) ListSubscriptions(ctx context.Context, schemes ...string) ([]*Subscription, error) {
	q := store.Query{Extra: "ORDER BY id"}
	var filters []map[string]any
	for _, scheme := range schemes {
		if scheme = strings.TrimSpace(scheme); scheme != "" {
			filters = append(filters, map[string]any{"scheme_name": scheme})
		}
	}
	if len(filters) > 0 {
		q.Where = store.AnyOf(filters...)
	}
	records, err := c.store.Fetch(ctx, tableSubscriptions, q)
	if err != nil {
		return nil, err
	}
	subs := make([]*Subscription, 0, len(records))
	for _, rec := range records {
		subs = append(subs, subscriptionFromRecord(rec))
	}
	return subs, nil
}

// DeleteSubscription removes a subscription. Items it produced are kept.
func (c *Catalog) DeleteSubscription(ctx context.Context, id int64) (bool, error) {
	affected, err := c.store.Delete(ctx, tableSubscriptions, store.Equals("id", id), false)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
