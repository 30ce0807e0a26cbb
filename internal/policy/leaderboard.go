package policy

import (
	"context"

	"agorahub.app/backbone/internal/cache"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
)

// LeaderboardPolicy recomputes a member's score from the reward ledger
// whenever a rewarded action lands. Recomputing from xp_awards instead of
// incrementing makes redelivery harmless.
type LeaderboardPolicy struct {
	cache *cache.LeaderboardCache
}

func NewLeaderboardPolicy(lb *cache.LeaderboardCache) *LeaderboardPolicy {
	return &LeaderboardPolicy{cache: lb}
}

func (p *LeaderboardPolicy) Name() string { return "leaderboard" }

func (p *LeaderboardPolicy) Events() []domain.EventName {
	return []domain.EventName{
		domain.EventThreadCreated,
		domain.EventThreadUpvoted,
		domain.EventCommentCreated,
	}
}

func (p *LeaderboardPolicy) Handle(ctx context.Context, s execution.StoreProvider, evt model.Event) error {
	payload, err := domain.DecodePayload(evt.Name, evt.Payload)
	if err != nil {
		return Permanent(err)
	}

	var communityID string
	var userID int64
	switch pl := payload.(type) {
	case domain.ThreadCreatedPayload:
		communityID, userID = pl.CommunityID, pl.AuthorID
	case domain.ThreadUpvotedPayload:
		communityID, userID = pl.CommunityID, pl.AuthorID
	case domain.CommentCreatedPayload:
		communityID, userID = pl.CommunityID, pl.AuthorID
	default:
		return Permanent(&domain.ErrUnknownEvent{Name: evt.Name})
	}

	if err := s.Leaderboard().UpsertFromAwards(ctx, communityID, userID); err != nil {
		return err
	}
	if p.cache != nil {
		p.cache.Invalidate(communityID)
	}
	return nil
}
