package model

import "time"

// XpAward is the reward ledger entry written by the xp-awards policy.
// SourceEventID is both the provenance and the idempotency marker: one event
// can credit at most once.
type XpAward struct {
	SourceEventID int64
	UserID        int64
	CommunityID   string
	Points        int
	AwardedAt     time.Time
}

type FeedItemKind string

const (
	FeedItemThread  FeedItemKind = "thread"
	FeedItemComment FeedItemKind = "comment"
)

// FeedItem is a row in the activity-feed projection, keyed by the source
// entity so that re-applying the same event is a no-op upsert.
type FeedItem struct {
	EntityID    int64
	CommunityID string
	Kind        FeedItemKind
	ThreadID    int64
	ActorID     int64
	Title       string
	HappenedAt  time.Time
}

// LeaderboardRow is a row in the per-community leaderboard projection,
// recomputed from xp_awards.
type LeaderboardRow struct {
	CommunityID string
	UserID      int64
	Points      int64
	UpdatedAt   time.Time
}

// ContestAction records content added to an on-chain contest, keyed by
// (contest_address, thread_id) so follow-up command submission is idempotent.
type ContestAction struct {
	ContestAddress string
	ThreadID       int64
	CommunityID    string
	AuthorID       int64
	AddedAt        time.Time
}
