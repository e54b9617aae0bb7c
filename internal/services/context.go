package services

import "context"

type contextKey string

const (
	subscriptionIDKey contextKey = "subscription_id"
	schemeKey         contextKey = "scheme"
	requestIDKey      contextKey = "request_id"
)

// WithSubscriptionID annotates context with the subscription being processed.
func WithSubscriptionID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, subscriptionIDKey, id)
}

// SubscriptionIDFromContext extracts the subscription identifier if present.
func SubscriptionIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(subscriptionIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithScheme annotates context with the template (scheme) name in use.
func WithScheme(ctx context.Context, scheme string) context.Context {
	if scheme == "" {
		return ctx
	}
	return context.WithValue(ctx, schemeKey, scheme)
}

// SchemeFromContext returns the scheme name if present.
func SchemeFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(schemeKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
