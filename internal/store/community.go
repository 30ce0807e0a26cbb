package store

import (
	"context"
	"errors"
	"fmt"

	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/model"
	"github.com/jackc/pgx/v5"
)

type communityStore struct {
	q db.Querier
}

func (s *communityStore) GetByID(ctx context.Context, id string) (*model.Community, error) {
	var c model.Community
	err := s.q.QueryRow(ctx, `
		SELECT id, name, creator_id, created_at
		FROM communities WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.CreatorID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *communityStore) Create(ctx context.Context, c *model.Community) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO communities (id, name, creator_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		c.ID, c.Name, c.CreatorID,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating community: %w", err)
	}
	return nil
}
