package store

import (
	"context"
	"fmt"
	"time"

	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/model"
)

type deliveryStore struct {
	q db.Querier
}

func (s *deliveryStore) ListForEvent(ctx context.Context, eventID int64) ([]model.Delivery, error) {
	rows, err := s.q.Query(ctx, `
		SELECT consumer_name, event_id, status, attempts, next_retry_at, last_error, updated_at
		FROM event_deliveries WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var result []model.Delivery
	for rows.Next() {
		var d model.Delivery
		var status string
		if err := rows.Scan(&d.ConsumerName, &d.EventID, &status, &d.Attempts, &d.NextRetryAt, &d.LastError, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Status = model.DeliveryStatus(status)
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *deliveryStore) MarkSucceeded(ctx context.Context, consumer string, eventID int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO event_deliveries (consumer_name, event_id, status, updated_at)
		VALUES ($1, $2, 'succeeded', now())
		ON CONFLICT (consumer_name, event_id)
		DO UPDATE SET status = 'succeeded', next_retry_at = NULL, updated_at = now()`,
		consumer, eventID)
	if err != nil {
		return fmt.Errorf("marking delivery succeeded: %w", err)
	}
	return nil
}

func (s *deliveryStore) MarkDeadLettered(ctx context.Context, consumer string, eventID int64, reason string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO event_deliveries (consumer_name, event_id, status, last_error, updated_at)
		VALUES ($1, $2, 'dead_lettered', $3, now())
		ON CONFLICT (consumer_name, event_id)
		DO UPDATE SET status = 'dead_lettered', next_retry_at = NULL, last_error = $3, updated_at = now()`,
		consumer, eventID, reason)
	if err != nil {
		return fmt.Errorf("marking delivery dead-lettered: %w", err)
	}
	return nil
}

func (s *deliveryStore) HasEarlierOpen(ctx context.Context, consumer string, aggregateID string, beforeID int64, names []domain.EventName) (bool, error) {
	nameStrs := make([]string, len(names))
	for i, n := range names {
		nameStrs[i] = string(n)
	}

	// No delivery row yet also counts as open: the earlier event simply has
	// not been attempted for this consumer.
	var open bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM events e
			LEFT JOIN event_deliveries d
				ON d.event_id = e.id AND d.consumer_name = $1
			WHERE e.aggregate_id = $2
			  AND e.id < $3
			  AND NOT e.relayed
			  AND e.name = ANY($4)
			  AND (d.status IS NULL OR d.status = 'pending')
		)`, consumer, aggregateID, beforeID, nameStrs).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("checking earlier deliveries for aggregate %s: %w", aggregateID, err)
	}
	return open, nil
}

func (s *deliveryStore) MarkRetry(ctx context.Context, consumer string, eventID int64, attempts int, nextRetryAt time.Time, lastError string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO event_deliveries (consumer_name, event_id, status, attempts, next_retry_at, last_error, updated_at)
		VALUES ($1, $2, 'pending', $3, $4, $5, now())
		ON CONFLICT (consumer_name, event_id)
		DO UPDATE SET attempts = $3, next_retry_at = $4, last_error = $5, updated_at = now()
		WHERE event_deliveries.status = 'pending'`,
		consumer, eventID, attempts, nextRetryAt, lastError)
	if err != nil {
		return fmt.Errorf("marking delivery for retry: %w", err)
	}
	return nil
}
