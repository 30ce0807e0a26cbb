package service

import (
	"context"

	"agorahub.app/backbone/internal/cache"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
)

type GetThreadPayload struct {
	ThreadID int64 `json:"thread_id" validate:"required"`
}

// ThreadView bundles a thread with its recent comments for read responses.
type ThreadView struct {
	Thread   *model.Thread   `json:"thread"`
	Comments []model.Comment `json:"comments"`
}

func GetThread() execution.Query[GetThreadPayload] {
	return execution.Query[GetThreadPayload]{
		Name:     "thread.get",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[GetThreadPayload]) (any, error) {
			thread, err := s.Threads().GetByID(ctx, req.Payload.ThreadID)
			if err != nil {
				return nil, err
			}
			comments, err := s.Comments().ListByThread(ctx, thread.ID, 50)
			if err != nil {
				return nil, err
			}
			return &ThreadView{Thread: thread, Comments: comments}, nil
		},
	}
}

type GetFeedPayload struct {
	CommunityID string `json:"community_id" validate:"required,max=80"`
	Limit       int32  `json:"limit" validate:"omitempty,min=1,max=100"`
}

// GetFeed reads the activity-feed projection, serving from the Redis cache
// when a fresh copy exists. The feed policy invalidates the cache on upsert,
// so a stale read window is bounded by the relay lag plus the cache TTL.
func GetFeed(feedCache *cache.FeedCache) execution.Query[GetFeedPayload] {
	return execution.Query[GetFeedPayload]{
		Name:     "feed.get",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[GetFeedPayload]) (any, error) {
			limit := req.Payload.Limit
			if limit == 0 {
				limit = 50
			}
			if feedCache != nil {
				if items, ok := feedCache.Get(ctx, req.Payload.CommunityID); ok && int32(len(items)) >= limit {
					return items[:limit], nil
				}
			}
			items, err := s.Feed().ListRecent(ctx, req.Payload.CommunityID, limit)
			if err != nil {
				return nil, err
			}
			if feedCache != nil {
				feedCache.Set(ctx, req.Payload.CommunityID, items)
			}
			return items, nil
		},
	}
}

type GetLeaderboardPayload struct {
	CommunityID string `json:"community_id" validate:"required,max=80"`
	Limit       int32  `json:"limit" validate:"omitempty,min=1,max=100"`
}

// GetLeaderboard reads the per-community leaderboard projection through an
// in-process expiring LRU.
func GetLeaderboard(lb *cache.LeaderboardCache) execution.Query[GetLeaderboardPayload] {
	return execution.Query[GetLeaderboardPayload]{
		Name:     "leaderboard.get",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[GetLeaderboardPayload]) (any, error) {
			limit := req.Payload.Limit
			if limit == 0 {
				limit = 10
			}
			if lb != nil {
				if rows, ok := lb.Get(req.Payload.CommunityID); ok && int32(len(rows)) >= limit {
					return rows[:limit], nil
				}
			}
			rows, err := s.Leaderboard().Top(ctx, req.Payload.CommunityID, limit)
			if err != nil {
				return nil, err
			}
			if lb != nil {
				lb.Set(req.Payload.CommunityID, rows)
			}
			return rows, nil
		},
	}
}

type GetXpBalancePayload struct {
	UserID      int64  `json:"user_id" validate:"required"`
	CommunityID string `json:"community_id" validate:"required,max=80"`
}

type XpBalanceView struct {
	UserID      int64  `json:"user_id"`
	CommunityID string `json:"community_id"`
	Points      int64  `json:"points"`
}

func GetXpBalance() execution.Query[GetXpBalancePayload] {
	return execution.Query[GetXpBalancePayload]{
		Name:     "xp.balance",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[GetXpBalancePayload]) (any, error) {
			points, err := s.Xp().GetBalance(ctx, req.Payload.UserID, req.Payload.CommunityID)
			if err != nil {
				return nil, err
			}
			return &XpBalanceView{
				UserID:      req.Payload.UserID,
				CommunityID: req.Payload.CommunityID,
				Points:      points,
			}, nil
		},
	}
}

// RegisterAll installs every command and query on the bus. Call once at
// startup before serving.
func RegisterAll(b *execution.Bus, feedCache *cache.FeedCache, lb *cache.LeaderboardCache) {
	execution.RegisterCommand(b, CreateCommunity())
	execution.RegisterCommand(b, CreateThread())
	execution.RegisterCommand(b, UpvoteThread())
	execution.RegisterCommand(b, CreateComment())
	execution.RegisterCommand(b, AddContestContent())

	execution.RegisterQuery(b, GetThread())
	execution.RegisterQuery(b, GetFeed(feedCache))
	execution.RegisterQuery(b, GetLeaderboard(lb))
	execution.RegisterQuery(b, GetXpBalance())
}
