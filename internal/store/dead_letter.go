package store

import (
	"context"
	"fmt"

	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/model"
)

type deadLetterStore struct {
	q db.Querier
}

func (s *deadLetterStore) Record(ctx context.Context, dl model.DeadLetter) error {
	// ON CONFLICT DO NOTHING: a duplicate dead-letter attempt for the same
	// (consumer, event) pair is an idempotent no-op.
	_, err := s.q.Exec(ctx, `
		INSERT INTO dead_letters (consumer_name, event_id, event_name, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consumer_name, event_id) DO NOTHING`,
		dl.ConsumerName, dl.EventID, string(dl.EventName), dl.Reason)
	if err != nil {
		return fmt.Errorf("recording dead letter: %w", err)
	}
	return nil
}

func (s *deadLetterStore) List(ctx context.Context, consumer string, limit int32) ([]model.DeadLetter, error) {
	query := `
		SELECT consumer_name, event_id, event_name, reason, failed_at
		FROM dead_letters`
	args := []any{}
	if consumer != "" {
		query += ` WHERE consumer_name = $1 ORDER BY failed_at DESC LIMIT $2`
		args = append(args, consumer, limit)
	} else {
		query += ` ORDER BY failed_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	defer rows.Close()

	var result []model.DeadLetter
	for rows.Next() {
		var dl model.DeadLetter
		var name string
		if err := rows.Scan(&dl.ConsumerName, &dl.EventID, &name, &dl.Reason, &dl.FailedAt); err != nil {
			return nil, err
		}
		dl.EventName = domain.EventName(name)
		result = append(result, dl)
	}
	return result, rows.Err()
}

func (s *deadLetterStore) Purge(ctx context.Context, consumer string, eventID int64) error {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM dead_letters WHERE consumer_name = $1 AND event_id = $2`,
		consumer, eventID)
	if err != nil {
		return fmt.Errorf("purging dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
