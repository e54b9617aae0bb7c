package logging

import (
	"context"
	"log/slog"

	"keepsake/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSubscriptionID is the standardized key for subscription identifiers.
	FieldSubscriptionID = "subscription_id"
	// FieldScheme is the standardized key for template (scheme) names.
	FieldScheme = "scheme"
	// FieldCorrelationID is the standardized key for per-run correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.SubscriptionIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldSubscriptionID, id))
	}
	if scheme, ok := services.SchemeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldScheme, scheme))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
