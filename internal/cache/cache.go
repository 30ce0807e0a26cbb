package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"agorahub.app/backbone/internal/model"
)

// FeedCache keeps rendered activity feeds in Redis for a short TTL. Reads and
// writes are best-effort; a cache failure degrades to a DB read, never to an
// error for the caller.
type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	return &FeedCache{rdb: rdb, ttl: ttl}
}

func feedKey(communityID string) string {
	return fmt.Sprintf("feed:%s", communityID)
}

func (c *FeedCache) Get(ctx context.Context, communityID string) ([]model.FeedItem, bool) {
	raw, err := c.rdb.Get(ctx, feedKey(communityID)).Bytes()
	if err != nil {
		return nil, false
	}
	var items []model.FeedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (c *FeedCache) Set(ctx context.Context, communityID string, items []model.FeedItem) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, feedKey(communityID), raw, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "feed cache write failed", "error", err, "community_id", communityID)
	}
}

// Invalidate drops the cached feed after the projection changed.
func (c *FeedCache) Invalidate(ctx context.Context, communityID string) {
	if err := c.rdb.Del(ctx, feedKey(communityID)).Err(); err != nil {
		slog.WarnContext(ctx, "feed cache invalidation failed", "error", err, "community_id", communityID)
	}
}

// LeaderboardCache is an in-process expiring LRU over per-community top lists.
// The leaderboard tolerates short staleness, so entries also age out on TTL
// rather than relying on invalidation alone.
type LeaderboardCache struct {
	lru *expirable.LRU[string, []model.LeaderboardRow]
}

func NewLeaderboardCache(size int, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		lru: expirable.NewLRU[string, []model.LeaderboardRow](size, nil, ttl),
	}
}

func (c *LeaderboardCache) Get(communityID string) ([]model.LeaderboardRow, bool) {
	return c.lru.Get(communityID)
}

func (c *LeaderboardCache) Set(communityID string, rows []model.LeaderboardRow) {
	c.lru.Add(communityID, rows)
}

func (c *LeaderboardCache) Invalidate(communityID string) {
	c.lru.Remove(communityID)
}
