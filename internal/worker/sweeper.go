package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agorahub.app/backbone/common/logger"
	"agorahub.app/backbone/internal/execution"
)

type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int32
}

// Sweeper periodically scans the outbox for unrelayed events and drives the
// dispatcher over them. It is the reliability floor under the stream: a lost
// or exhausted wake-up only delays an event by one sweep interval.
// Overlapping sweeps are harmless; ProcessEvent is idempotent.
type Sweeper struct {
	stores     execution.StoreProvider
	dispatcher EventProcessor
	cfg        SweeperConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(stores execution.StoreProvider, dispatcher EventProcessor, cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		stores:     stores,
		dispatcher: dispatcher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Run starts the sweep loop. Blocks until Stop() is called.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "relay.worker.sweeper",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "sweeper started",
		"interval", s.cfg.Interval,
		"batch_size", s.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "sweeper stopping")
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "sweep cycle error", "error", err)
			}
		}
	}
}

// Stop signals the sweeper to stop gracefully.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

func (s *Sweeper) sweepOnce(ctx context.Context) error {
	events, err := s.stores.Events().ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "sweeping unrelayed events", "count", len(events))

	// Ascending id order: the outbox id is the relay order. A fault aborts
	// the cycle rather than skipping ahead; the next tick retries from the
	// same position and later events never jump a faulted earlier one.
	for _, evt := range events {
		relayed, err := s.dispatcher.ProcessEvent(ctx, evt.ID)
		if err != nil {
			return fmt.Errorf("sweep aborted at event %d: %w", evt.ID, err)
		}
		if !relayed {
			slog.DebugContext(ctx, "event still pending retries", "event_id", evt.ID)
		}
	}
	return nil
}
