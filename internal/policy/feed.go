package policy

import (
	"context"

	"agorahub.app/backbone/internal/cache"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
)

// FeedPolicy projects threads and comments into the activity feed. Rows are
// upserts keyed by entity id, so redelivery just rewrites the same row.
type FeedPolicy struct {
	cache *cache.FeedCache
}

func NewFeedPolicy(feedCache *cache.FeedCache) *FeedPolicy {
	return &FeedPolicy{cache: feedCache}
}

func (p *FeedPolicy) Name() string { return "activity-feed" }

func (p *FeedPolicy) Events() []domain.EventName {
	return []domain.EventName{
		domain.EventThreadCreated,
		domain.EventCommentCreated,
	}
}

func (p *FeedPolicy) Handle(ctx context.Context, s execution.StoreProvider, evt model.Event) error {
	payload, err := domain.DecodePayload(evt.Name, evt.Payload)
	if err != nil {
		return Permanent(err)
	}

	var item model.FeedItem
	switch pl := payload.(type) {
	case domain.ThreadCreatedPayload:
		item = model.FeedItem{
			EntityID:    pl.ThreadID,
			CommunityID: pl.CommunityID,
			Kind:        model.FeedItemThread,
			ThreadID:    pl.ThreadID,
			ActorID:     pl.AuthorID,
			Title:       pl.Title,
			HappenedAt:  pl.CreatedAt,
		}
	case domain.CommentCreatedPayload:
		item = model.FeedItem{
			EntityID:    pl.CommentID,
			CommunityID: pl.CommunityID,
			Kind:        model.FeedItemComment,
			ThreadID:    pl.ThreadID,
			ActorID:     pl.AuthorID,
			HappenedAt:  pl.CreatedAt,
		}
	default:
		return Permanent(&domain.ErrUnknownEvent{Name: evt.Name})
	}

	if err := s.Feed().Upsert(ctx, item); err != nil {
		return err
	}
	if p.cache != nil {
		p.cache.Invalidate(ctx, item.CommunityID)
	}
	return nil
}
