package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (event_id, consumer, etc.) is automatically included in all log statements.
type LogFields struct {
	EventID     *int64  // Outbox event ID
	EventName   *string // Event name (e.g., "ThreadCreated")
	Consumer    *string // Policy/consumer name currently handling the event
	CommunityID *string // Tenant community ID
	AggregateID *string // Aggregate ID of the command/event being handled
	MessageID   *string // Redis stream message ID
	Component   string  // Component name (OTel semantic convention style, e.g., "backbone.relay.dispatcher")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.EventID != nil {
		result.EventID = new.EventID
	}
	if new.EventName != nil {
		result.EventName = new.EventName
	}
	if new.Consumer != nil {
		result.Consumer = new.Consumer
	}
	if new.CommunityID != nil {
		result.CommunityID = new.CommunityID
	}
	if new.AggregateID != nil {
		result.AggregateID = new.AggregateID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{EventID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens a string to at most maxLen characters, ending in "..."
// when anything was cut. Useful for logging potentially long strings like
// payloads or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
