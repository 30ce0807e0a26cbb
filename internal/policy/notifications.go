package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
)

// Notification is one message for one recipient.
type Notification struct {
	UserID      int64  `json:"user_id"`
	Kind        string `json:"kind"`
	CommunityID string `json:"community_id"`
	ThreadID    int64  `json:"thread_id"`
	Message     string `json:"message"`
}

// Notifier delivers notifications to an external channel. Implementations
// must tolerate duplicate sends for the same event.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// BreakerNotifier wraps a Notifier in a circuit breaker so a dead downstream
// fails fast instead of stalling every delivery on its timeout.
type BreakerNotifier struct {
	inner Notifier
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerNotifier(inner Notifier) *BreakerNotifier {
	return &BreakerNotifier{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "notifier",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (b *BreakerNotifier) Notify(ctx context.Context, n Notification) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.Notify(ctx, n)
	})
	return err
}

// NotificationsPolicy fans user notifications out of comment and upvote
// events. Sending is not idempotent at the channel level, so a retry can
// duplicate a notification; that is the accepted cost of at-least-once.
type NotificationsPolicy struct {
	notifier Notifier
}

func NewNotificationsPolicy(notifier Notifier) *NotificationsPolicy {
	return &NotificationsPolicy{notifier: notifier}
}

func (p *NotificationsPolicy) Name() string { return "notifications" }

func (p *NotificationsPolicy) Events() []domain.EventName {
	return []domain.EventName{
		domain.EventCommentCreated,
		domain.EventThreadUpvoted,
	}
}

func (p *NotificationsPolicy) Handle(ctx context.Context, s execution.StoreProvider, evt model.Event) error {
	payload, err := domain.DecodePayload(evt.Name, evt.Payload)
	if err != nil {
		return Permanent(err)
	}

	var out []Notification
	switch pl := payload.(type) {
	case domain.CommentCreatedPayload:
		if pl.ThreadAuthorID != pl.AuthorID {
			out = append(out, Notification{
				UserID:      pl.ThreadAuthorID,
				Kind:        "comment",
				CommunityID: pl.CommunityID,
				ThreadID:    pl.ThreadID,
				Message:     fmt.Sprintf("new comment on your thread %d", pl.ThreadID),
			})
		}
		for _, mentioned := range pl.MentionedUserIDs {
			if mentioned == pl.AuthorID {
				continue
			}
			out = append(out, Notification{
				UserID:      mentioned,
				Kind:        "mention",
				CommunityID: pl.CommunityID,
				ThreadID:    pl.ThreadID,
				Message:     fmt.Sprintf("you were mentioned in thread %d", pl.ThreadID),
			})
		}
	case domain.ThreadUpvotedPayload:
		if pl.AuthorID != pl.VoterID {
			out = append(out, Notification{
				UserID:      pl.AuthorID,
				Kind:        "upvote",
				CommunityID: pl.CommunityID,
				ThreadID:    pl.ThreadID,
				Message:     fmt.Sprintf("your thread %d was upvoted", pl.ThreadID),
			})
		}
	default:
		return Permanent(&domain.ErrUnknownEvent{Name: evt.Name})
	}

	for _, n := range out {
		if err := p.notifier.Notify(ctx, n); err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return Transient(err)
			}
			return err
		}
	}
	return nil
}
