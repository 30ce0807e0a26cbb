package policy

import (
	"context"
	"encoding/json"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/service"
)

// CommandSubmitter is the slice of the bus contest follow-ups need.
type CommandSubmitter interface {
	InvokeCommand(ctx context.Context, name string, aggregateID *string, actor domain.Actor, raw json.RawMessage) (any, error)
}

// ContestPolicy forwards eligible thread activity into on-chain contests.
// It never writes contest state itself; it submits the contest.add-content
// command so the write goes through the same validated, event-emitting path
// as every other mutation.
type ContestPolicy struct {
	bus CommandSubmitter
}

func NewContestPolicy(bus CommandSubmitter) *ContestPolicy {
	return &ContestPolicy{bus: bus}
}

func (p *ContestPolicy) Name() string { return "contest-worker" }

func (p *ContestPolicy) Events() []domain.EventName {
	return []domain.EventName{domain.EventThreadCreated, domain.EventThreadUpvoted}
}

func (p *ContestPolicy) Handle(ctx context.Context, s execution.StoreProvider, evt model.Event) error {
	payload, err := domain.DecodePayload(evt.Name, evt.Payload)
	if err != nil {
		return Permanent(err)
	}

	var (
		managers    []string
		threadID    int64
		communityID string
		authorID    int64
	)
	switch pl := payload.(type) {
	case domain.ThreadCreatedPayload:
		managers, threadID, communityID, authorID = pl.ContestManagers, pl.ThreadID, pl.CommunityID, pl.AuthorID
	case domain.ThreadUpvotedPayload:
		// An upvote on an already-submitted thread is a no-op downstream;
		// contest.add-content dedupes on (contest, thread).
		managers, threadID, communityID, authorID = pl.ContestManagers, pl.ThreadID, pl.CommunityID, pl.AuthorID
	default:
		return Permanent(&domain.ErrUnknownEvent{Name: evt.Name})
	}
	if len(managers) == 0 {
		return nil
	}

	actor := domain.SystemActor()
	for _, contestAddress := range managers {
		raw, err := json.Marshal(service.AddContestContentPayload{
			ContestAddress: contestAddress,
			ThreadID:       threadID,
			CommunityID:    communityID,
			AuthorID:       authorID,
		})
		if err != nil {
			return Permanent(err)
		}
		if _, err := p.bus.InvokeCommand(ctx, "contest.add-content", nil, actor, raw); err != nil {
			if execution.IsValidation(err) || execution.IsAuthorization(err) {
				return Permanent(err)
			}
			return err
		}
	}
	return nil
}
