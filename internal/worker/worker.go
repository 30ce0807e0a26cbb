package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agorahub.app/backbone/common/logger"
	"agorahub.app/backbone/internal/queue"
)

type Config struct {
	MaxWakeAttempts int
}

// WakeConsumer is the slice of the stream consumer the worker drives.
type WakeConsumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
}

// EventProcessor relays one committed event. Implemented by relay.Dispatcher.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventID int64) (bool, error)
}

// Worker consumes wake-up messages from the relay stream and drives the
// dispatcher. The stream is only a nudge: all delivery state lives in
// Postgres, so dropping a message at worst delays the event until the
// sweeper finds it.
type Worker struct {
	consumer   WakeConsumer
	dispatcher EventProcessor
	cfg        Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer WakeConsumer, dispatcher EventProcessor, cfg Config) *Worker {
	if cfg.MaxWakeAttempts <= 0 {
		cfg.MaxWakeAttempts = 10
	}
	return &Worker{
		consumer:   consumer,
		dispatcher: dispatcher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "relay.worker",
	})

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.ProcessMessage(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"event_id", msg.EventID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

// ProcessMessage handles one wake-up. Exported so it can be reused by the
// reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   logger.Ptr(msg.EventID),
		MessageID: logger.Ptr(msg.ID),
	})
	if msg.TraceID != "" {
		span := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process")
		ctx = span.Context()
		defer span.End()
	}

	slog.InfoContext(ctx, "processing wake-up",
		"event_name", msg.EventName,
		"attempt", msg.Attempt)

	relayed, err := w.dispatcher.ProcessEvent(ctx, msg.EventID)
	if err != nil {
		// Infrastructure fault: leave the message unacked so Redis
		// redelivers it.
		return err
	}

	if relayed {
		if err := w.consumer.Ack(ctx, msg); err != nil {
			// Reclaim will redeliver; ProcessEvent is idempotent.
			slog.WarnContext(ctx, "failed to ack message", "error", err)
		}
		return nil
	}

	// Some delivery is still waiting on its retry window. Requeue the
	// wake-up so the relay revisits the event; the sweeper is the fallback
	// when these run out.
	if msg.Attempt >= w.cfg.MaxWakeAttempts {
		slog.InfoContext(ctx, "wake-up attempts exhausted, deferring to sweeper",
			"attempts", msg.Attempt)
		return w.consumer.Ack(ctx, msg)
	}
	return w.consumer.Requeue(ctx, msg, "deliveries pending retry")
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxWakeAttempts {
		slog.WarnContext(ctx, "wake-up failed too often, deferring to sweeper",
			"message_id", msg.ID,
			"event_id", msg.EventID,
			"attempts", msg.Attempt)
		if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
			slog.ErrorContext(ctx, "failed to ack exhausted message", "error", ackErr)
		}
		return
	}

	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
