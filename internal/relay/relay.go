package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agorahub.app/backbone/common/logger"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/policy"
	"agorahub.app/backbone/internal/store"
)

// Fault wraps an infrastructure failure inside the relay itself, as opposed
// to a consumer failure. Faults leave delivery state untouched so the next
// pass can pick the event up again.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string { return fmt.Sprintf("relay %s: %v", f.Op, f.Err) }
func (f *Fault) Unwrap() error { return f.Err }

func fault(op string, err error) error {
	return &Fault{Op: op, Err: err}
}

// Dispatcher fans one committed event out to every subscribed policy and
// tracks per-consumer progress. All methods are safe for concurrent use.
type Dispatcher struct {
	registry    *policy.Registry
	tx          execution.TxRunner
	stores      execution.StoreProvider
	timeout     time.Duration
	maxAttempts int
	schedule    Schedule
}

func NewDispatcher(registry *policy.Registry, tx execution.TxRunner, stores execution.StoreProvider, timeout time.Duration, maxAttempts int, schedule Schedule) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		tx:          tx,
		stores:      stores,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		schedule:    schedule,
	}
}

// ProcessEvent drives every non-terminal delivery of one event. It returns
// relayed=true once all subscribers are terminal; false means at least one
// delivery is still pending a retry. An error is an infrastructure fault and
// says nothing about consumer outcomes.
func (d *Dispatcher) ProcessEvent(ctx context.Context, eventID int64) (bool, error) {
	evt, err := d.stores.Events().GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A wake-up for an id we cannot see yet, e.g. from a transaction
			// that rolled back after notifying. Nothing to relay.
			slog.WarnContext(ctx, "wake-up for unknown event", "event_id", eventID)
			return true, nil
		}
		return false, fault("load event", err)
	}
	if evt.Relayed {
		return true, nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   logger.Ptr(evt.ID),
		EventName: logger.Ptr(string(evt.Name)),
	})

	subscribers := d.registry.Subscribers(evt.Name)
	if len(subscribers) == 0 {
		if err := d.stores.Events().MarkRelayed(ctx, evt.ID); err != nil {
			return false, fault("mark relayed", err)
		}
		return true, nil
	}

	existing, err := d.stores.Deliveries().ListForEvent(ctx, evt.ID)
	if err != nil {
		return false, fault("list deliveries", err)
	}
	byConsumer := make(map[string]model.Delivery, len(existing))
	for _, del := range existing {
		byConsumer[del.ConsumerName] = del
	}

	now := time.Now()
	allTerminal := true
	for _, h := range subscribers {
		del, tracked := byConsumer[h.Name()]
		if tracked && del.Terminal() {
			continue
		}
		if tracked && del.NextRetryAt != nil && del.NextRetryAt.After(now) {
			allTerminal = false
			continue
		}

		// Commit order per (consumer, aggregate): hold this event while an
		// earlier one of the same aggregate is still open for this consumer.
		if evt.AggregateID != nil {
			blocked, err := d.stores.Deliveries().HasEarlierOpen(ctx, h.Name(), *evt.AggregateID, evt.ID, h.Events())
			if err != nil {
				return false, fault("check aggregate order", err)
			}
			if blocked {
				allTerminal = false
				continue
			}
		}

		terminal, err := d.deliver(ctx, h, *evt, del.Attempts)
		if err != nil {
			return false, err
		}
		if !terminal {
			allTerminal = false
		}
	}

	if !allTerminal {
		return false, nil
	}
	if err := d.stores.Events().MarkRelayed(ctx, evt.ID); err != nil {
		return false, fault("mark relayed", err)
	}
	return true, nil
}

// deliver runs one handler attempt and records the outcome. The returned
// bool reports whether the delivery reached a terminal state.
func (d *Dispatcher) deliver(ctx context.Context, h policy.Handler, evt model.Event, priorAttempts int) (bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Consumer: logger.Ptr(h.Name())})

	handlerErr := d.runHandler(ctx, h, evt)
	if handlerErr == nil {
		if err := d.stores.Deliveries().MarkSucceeded(ctx, h.Name(), evt.ID); err != nil {
			return false, fault("mark succeeded", err)
		}
		slog.InfoContext(ctx, "delivery succeeded", "attempts", priorAttempts+1)
		return true, nil
	}

	attempts := priorAttempts + 1
	if policy.IsPermanent(handlerErr) || attempts >= d.maxAttempts {
		if err := d.deadLetter(ctx, h.Name(), evt, handlerErr); err != nil {
			return false, err
		}
		slog.ErrorContext(ctx, "delivery dead lettered",
			"error", handlerErr,
			"attempts", attempts,
			"permanent", policy.IsPermanent(handlerErr))
		return true, nil
	}

	nextRetryAt := time.Now().Add(d.schedule.Delay(attempts))
	if err := d.stores.Deliveries().MarkRetry(ctx, h.Name(), evt.ID, attempts, nextRetryAt, handlerErr.Error()); err != nil {
		return false, fault("mark retry", err)
	}
	slog.WarnContext(ctx, "delivery failed, will retry",
		"error", handlerErr,
		"attempts", attempts,
		"next_retry_at", nextRetryAt)
	return false, nil
}

// runHandler executes one attempt with the per-policy timeout, inside its
// own transaction, with panic recovery. A panicking handler must not take
// the worker down with it.
func (d *Dispatcher) runHandler(ctx context.Context, h policy.Handler, evt model.Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy %s panicked: %v", h.Name(), r)
		}
	}()

	return d.tx.WithTx(ctx, func(s execution.StoreProvider) error {
		return h.Handle(ctx, s, evt)
	})
}

func (d *Dispatcher) deadLetter(ctx context.Context, consumer string, evt model.Event, cause error) error {
	dl := model.DeadLetter{
		ConsumerName: consumer,
		EventID:      evt.ID,
		EventName:    evt.Name,
		Reason:       logger.Truncate(cause.Error(), 1024),
		FailedAt:     time.Now(),
	}
	if err := d.stores.DeadLetters().Record(ctx, dl); err != nil {
		return fault("record dead letter", err)
	}
	if err := d.stores.Deliveries().MarkDeadLettered(ctx, consumer, evt.ID, dl.Reason); err != nil {
		return fault("mark dead lettered", err)
	}
	return nil
}

// Replay re-runs one dead-lettered delivery on operator request. Success
// purges the dead letter, marks the delivery succeeded and, if that was the
// last open delivery, marks the event relayed. Failure leaves the dead
// letter in place and returns the handler error.
func (d *Dispatcher) Replay(ctx context.Context, consumer string, eventID int64) error {
	h, ok := d.registry.For(consumer)
	if !ok {
		return fmt.Errorf("unknown consumer %q", consumer)
	}
	evt, err := d.stores.Events().GetByID(ctx, eventID)
	if err != nil {
		return err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   logger.Ptr(evt.ID),
		EventName: logger.Ptr(string(evt.Name)),
		Consumer:  logger.Ptr(consumer),
	})

	if err := d.runHandler(ctx, h, *evt); err != nil {
		return fmt.Errorf("replay %s for event %d: %w", consumer, eventID, err)
	}

	if err := d.stores.DeadLetters().Purge(ctx, consumer, eventID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fault("purge dead letter", err)
	}
	if err := d.stores.Deliveries().MarkSucceeded(ctx, consumer, eventID); err != nil {
		return fault("mark succeeded", err)
	}
	slog.InfoContext(ctx, "dead letter replayed")

	_, err = d.ProcessEvent(ctx, eventID)
	return err
}
