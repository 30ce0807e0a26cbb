package store

import (
	"context"
	"time"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/model"
)

// EventLogStore defines the contract for the outbox
type EventLogStore interface {
	// Append inserts a draft and returns the committed row with its
	// DB-assigned id. Must run inside the command's transaction.
	Append(ctx context.Context, draft model.EventDraft) (*model.Event, error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	// ListPending returns unrelayed events in ascending id order. Concurrent
	// sweeps may see overlapping batches; callers must tolerate reprocessing.
	ListPending(ctx context.Context, limit int32) ([]model.Event, error)
	MarkRelayed(ctx context.Context, id int64) error
}

// DeliveryStore defines the contract for per-consumer delivery tracking
type DeliveryStore interface {
	ListForEvent(ctx context.Context, eventID int64) ([]model.Delivery, error)
	MarkSucceeded(ctx context.Context, consumer string, eventID int64) error
	MarkDeadLettered(ctx context.Context, consumer string, eventID int64, reason string) error
	// MarkRetry persists the bounded-attempt state machine: attempt count and
	// the earliest time the next attempt may run.
	MarkRetry(ctx context.Context, consumer string, eventID int64, attempts int, nextRetryAt time.Time, lastError string) error
	// HasEarlierOpen reports whether an earlier unrelayed event of the same
	// aggregate, with a name the consumer subscribes to, still has a
	// non-terminal delivery for that consumer. The relay holds later events
	// of the aggregate while this is true so each consumer sees commit
	// order. Dead-lettered deliveries are terminal and do not block.
	HasEarlierOpen(ctx context.Context, consumer string, aggregateID string, beforeID int64, names []domain.EventName) (bool, error)
}

// DeadLetterStore defines the contract for the DLQ
type DeadLetterStore interface {
	// Record is an idempotent append: a second write for the same
	// (consumer, event) pair is a no-op.
	Record(ctx context.Context, dl model.DeadLetter) error
	List(ctx context.Context, consumer string, limit int32) ([]model.DeadLetter, error)
	Purge(ctx context.Context, consumer string, eventID int64) error
}

// CommunityStore defines the contract for community data access
type CommunityStore interface {
	GetByID(ctx context.Context, id string) (*model.Community, error)
	Create(ctx context.Context, c *model.Community) error
}

// ThreadStore defines the contract for thread data access
type ThreadStore interface {
	GetByID(ctx context.Context, id int64) (*model.Thread, error)
	Create(ctx context.Context, t *model.Thread) error
	// Upvote increments the counter iff version matches; returns the updated
	// thread or ErrNotFound when the optimistic check fails.
	Upvote(ctx context.Context, id int64, version int) (*model.Thread, error)
	IncrementCommentCount(ctx context.Context, id int64) error
}

// CommentStore defines the contract for comment data access
type CommentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	Create(ctx context.Context, c *model.Comment) error
	ListByThread(ctx context.Context, threadID int64, limit int32) ([]model.Comment, error)
}

// XpStore defines the contract for the reward ledger
type XpStore interface {
	// InsertAward returns ErrDuplicate when the source event already credited.
	InsertAward(ctx context.Context, award model.XpAward) error
	AddBalance(ctx context.Context, userID int64, communityID string, points int) error
	GetBalance(ctx context.Context, userID int64, communityID string) (int64, error)
	SumAwards(ctx context.Context, userID int64, communityID string) (int64, error)
}

// FeedStore defines the contract for the activity-feed projection
type FeedStore interface {
	Upsert(ctx context.Context, item model.FeedItem) error
	ListRecent(ctx context.Context, communityID string, limit int32) ([]model.FeedItem, error)
}

// LeaderboardStore defines the contract for the leaderboard projection
type LeaderboardStore interface {
	// UpsertFromAwards recomputes one member's score from the reward ledger.
	UpsertFromAwards(ctx context.Context, communityID string, userID int64) error
	Top(ctx context.Context, communityID string, limit int32) ([]model.LeaderboardRow, error)
}

// ContestStore defines the contract for contest action bookkeeping
type ContestStore interface {
	// CreateAction returns ErrDuplicate when the content was already added.
	CreateAction(ctx context.Context, a model.ContestAction) error
	GetAction(ctx context.Context, contestAddress string, threadID int64) (*model.ContestAction, error)
}
