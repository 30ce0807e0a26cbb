package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"agorahub.app/backbone/internal/model"
)

// WakeMessage is one wake-up on the relay stream. It carries identifiers
// only; the relay always reloads the event row from the outbox, so a stale
// or duplicated message is harmless.
type WakeMessage struct {
	EventID   int64
	EventName string
	Attempt   int
	TraceID   string
}

type Producer interface {
	Enqueue(ctx context.Context, msg WakeMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) *redisProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg WakeMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"event_id":   msg.EventID,
		"event_name": msg.EventName,
		"attempt":    attempt,
	}
	if msg.TraceID != "" {
		fields["trace_id"] = msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue wake-up: %w", err)
	}

	p.logger.DebugContext(ctx, "enqueued wake-up", "event_id", msg.EventID, "event_name", msg.EventName, "attempt", attempt)
	return nil
}

// Wake publishes one wake-up per committed event. This is the post-commit
// change notification; the event is already durable in the outbox, so a
// failure here only delays delivery until the sweep.
func (p *redisProducer) Wake(ctx context.Context, events []model.Event) error {
	traceID := ""
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	for _, evt := range events {
		if err := p.Enqueue(ctx, WakeMessage{
			EventID:   evt.ID,
			EventName: string(evt.Name),
			TraceID:   traceID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
