package store

import (
	"context"
	"errors"
	"fmt"

	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/model"
	"github.com/jackc/pgx/v5"
)

type threadStore struct {
	q db.Querier
}

func (s *threadStore) GetByID(ctx context.Context, id int64) (*model.Thread, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, community_id, author_id, title, body, topic_id, upvotes,
		       comment_count, version, created_at, updated_at
		FROM threads WHERE id = $1`, id)

	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *threadStore) Create(ctx context.Context, t *model.Thread) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO threads (id, community_id, author_id, title, body, topic_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING upvotes, comment_count, version, created_at, updated_at`,
		t.ID, t.CommunityID, t.AuthorID, t.Title, t.Body, t.TopicID,
	).Scan(&t.Upvotes, &t.CommentCount, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating thread: %w", err)
	}
	return nil
}

// Upvote increments the counter under the optimistic version check.
// ErrNotFound here means either a missing thread or a stale version; the
// caller distinguishes by reloading.
func (s *threadStore) Upvote(ctx context.Context, id int64, version int) (*model.Thread, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE threads
		SET upvotes = upvotes + 1, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING id, community_id, author_id, title, body, topic_id, upvotes,
		          comment_count, version, created_at, updated_at`,
		id, version)

	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *threadStore) IncrementCommentCount(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE threads
		SET comment_count = comment_count + 1, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("incrementing comment count: %w", err)
	}
	return nil
}

func scanThread(row pgx.Row) (*model.Thread, error) {
	var t model.Thread
	err := row.Scan(&t.ID, &t.CommunityID, &t.AuthorID, &t.Title, &t.Body,
		&t.TopicID, &t.Upvotes, &t.CommentCount, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type commentStore struct {
	q db.Querier
}

func (s *commentStore) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := s.q.QueryRow(ctx, `
		SELECT id, thread_id, author_id, parent_id, body, created_at
		FROM comments WHERE id = $1`, id,
	).Scan(&c.ID, &c.ThreadID, &c.AuthorID, &c.ParentID, &c.Body, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *commentStore) Create(ctx context.Context, c *model.Comment) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO comments (id, thread_id, author_id, parent_id, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		c.ID, c.ThreadID, c.AuthorID, c.ParentID, c.Body,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating comment: %w", err)
	}
	return nil
}

func (s *commentStore) ListByThread(ctx context.Context, threadID int64, limit int32) ([]model.Comment, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, thread_id, author_id, parent_id, body, created_at
		FROM comments WHERE thread_id = $1
		ORDER BY created_at ASC LIMIT $2`, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var result []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ThreadID, &c.AuthorID, &c.ParentID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
