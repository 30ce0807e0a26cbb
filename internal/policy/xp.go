package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

// Point values per rewarded action.
const (
	xpThreadCreated  = 10
	xpCommentCreated = 5
	xpThreadUpvoted  = 2
)

// XpPolicy credits experience points for contributions. The award row is
// keyed by source event id, so a redelivered event hits ErrDuplicate and the
// handler treats that as already done.
type XpPolicy struct{}

func NewXpPolicy() *XpPolicy { return &XpPolicy{} }

func (p *XpPolicy) Name() string { return "xp-awards" }

func (p *XpPolicy) Events() []domain.EventName {
	return []domain.EventName{
		domain.EventThreadCreated,
		domain.EventThreadUpvoted,
		domain.EventCommentCreated,
	}
}

func (p *XpPolicy) Handle(ctx context.Context, s execution.StoreProvider, evt model.Event) error {
	payload, err := domain.DecodePayload(evt.Name, evt.Payload)
	if err != nil {
		return Permanent(err)
	}

	var award model.XpAward
	switch pl := payload.(type) {
	case domain.ThreadCreatedPayload:
		award = model.XpAward{
			SourceEventID: evt.ID,
			UserID:        pl.AuthorID,
			CommunityID:   pl.CommunityID,
			Points:        xpThreadCreated,
			AwardedAt:     time.Now(),
		}
	case domain.ThreadUpvotedPayload:
		// The thread author earns the points, not the voter.
		award = model.XpAward{
			SourceEventID: evt.ID,
			UserID:        pl.AuthorID,
			CommunityID:   pl.CommunityID,
			Points:        xpThreadUpvoted,
			AwardedAt:     time.Now(),
		}
	case domain.CommentCreatedPayload:
		award = model.XpAward{
			SourceEventID: evt.ID,
			UserID:        pl.AuthorID,
			CommunityID:   pl.CommunityID,
			Points:        xpCommentCreated,
			AwardedAt:     time.Now(),
		}
	default:
		return Permanent(&domain.ErrUnknownEvent{Name: evt.Name})
	}

	if err := s.Xp().InsertAward(ctx, award); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			slog.DebugContext(ctx, "xp award already applied", "event_id", evt.ID)
			return nil
		}
		return err
	}
	return s.Xp().AddBalance(ctx, award.UserID, award.CommunityID, award.Points)
}
