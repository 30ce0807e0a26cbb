package store

import (
	"context"
	"errors"
	"fmt"

	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/model"
	"github.com/jackc/pgx/v5"
)

type xpStore struct {
	q db.Querier
}

func (s *xpStore) InsertAward(ctx context.Context, award model.XpAward) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO xp_awards (source_event_id, user_id, community_id, points)
		VALUES ($1, $2, $3, $4)`,
		award.SourceEventID, award.UserID, award.CommunityID, award.Points)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting xp award: %w", err)
	}
	return nil
}

func (s *xpStore) AddBalance(ctx context.Context, userID int64, communityID string, points int) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO xp_balances (user_id, community_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, community_id)
		DO UPDATE SET points = xp_balances.points + $3`,
		userID, communityID, points)
	if err != nil {
		return fmt.Errorf("adding xp balance: %w", err)
	}
	return nil
}

func (s *xpStore) GetBalance(ctx context.Context, userID int64, communityID string) (int64, error) {
	var points int64
	err := s.q.QueryRow(ctx, `
		SELECT points FROM xp_balances WHERE user_id = $1 AND community_id = $2`,
		userID, communityID,
	).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return points, nil
}

func (s *xpStore) SumAwards(ctx context.Context, userID int64, communityID string) (int64, error) {
	var sum int64
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM xp_awards
		WHERE user_id = $1 AND community_id = $2`,
		userID, communityID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing xp awards: %w", err)
	}
	return sum, nil
}

type feedStore struct {
	q db.Querier
}

func (s *feedStore) Upsert(ctx context.Context, item model.FeedItem) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO feed_items (entity_id, community_id, kind, thread_id, actor_id, title, happened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_id)
		DO UPDATE SET title = $6, happened_at = $7`,
		item.EntityID, item.CommunityID, string(item.Kind), item.ThreadID,
		item.ActorID, item.Title, item.HappenedAt)
	if err != nil {
		return fmt.Errorf("upserting feed item: %w", err)
	}
	return nil
}

func (s *feedStore) ListRecent(ctx context.Context, communityID string, limit int32) ([]model.FeedItem, error) {
	rows, err := s.q.Query(ctx, `
		SELECT entity_id, community_id, kind, thread_id, actor_id, title, happened_at
		FROM feed_items WHERE community_id = $1
		ORDER BY happened_at DESC LIMIT $2`, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing feed: %w", err)
	}
	defer rows.Close()

	var result []model.FeedItem
	for rows.Next() {
		var item model.FeedItem
		var kind string
		if err := rows.Scan(&item.EntityID, &item.CommunityID, &kind, &item.ThreadID, &item.ActorID, &item.Title, &item.HappenedAt); err != nil {
			return nil, err
		}
		item.Kind = model.FeedItemKind(kind)
		result = append(result, item)
	}
	return result, rows.Err()
}

type leaderboardStore struct {
	q db.Querier
}

// UpsertFromAwards recomputes one member's score from the reward ledger, so
// applying the same event any number of times converges on the same row.
func (s *leaderboardStore) UpsertFromAwards(ctx context.Context, communityID string, userID int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO leaderboard (community_id, user_id, points, updated_at)
		SELECT $1, $2, COALESCE(SUM(points), 0), now()
		FROM xp_awards WHERE community_id = $1 AND user_id = $2
		ON CONFLICT (community_id, user_id)
		DO UPDATE SET points = EXCLUDED.points, updated_at = now()`,
		communityID, userID)
	if err != nil {
		return fmt.Errorf("upserting leaderboard row: %w", err)
	}
	return nil
}

func (s *leaderboardStore) Top(ctx context.Context, communityID string, limit int32) ([]model.LeaderboardRow, error) {
	rows, err := s.q.Query(ctx, `
		SELECT community_id, user_id, points, updated_at
		FROM leaderboard WHERE community_id = $1
		ORDER BY points DESC, user_id ASC LIMIT $2`, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboard: %w", err)
	}
	defer rows.Close()

	var result []model.LeaderboardRow
	for rows.Next() {
		var r model.LeaderboardRow
		if err := rows.Scan(&r.CommunityID, &r.UserID, &r.Points, &r.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type contestStore struct {
	q db.Querier
}

func (s *contestStore) CreateAction(ctx context.Context, a model.ContestAction) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO contest_actions (contest_address, thread_id, community_id, author_id)
		VALUES ($1, $2, $3, $4)`,
		a.ContestAddress, a.ThreadID, a.CommunityID, a.AuthorID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating contest action: %w", err)
	}
	return nil
}

func (s *contestStore) GetAction(ctx context.Context, contestAddress string, threadID int64) (*model.ContestAction, error) {
	var a model.ContestAction
	err := s.q.QueryRow(ctx, `
		SELECT contest_address, thread_id, community_id, author_id, added_at
		FROM contest_actions WHERE contest_address = $1 AND thread_id = $2`,
		contestAddress, threadID,
	).Scan(&a.ContestAddress, &a.ThreadID, &a.CommunityID, &a.AuthorID, &a.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
