package service

import (
	"context"
	"errors"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

type AddContestContentPayload struct {
	ContestAddress string `json:"contest_address" validate:"required,max=120"`
	ThreadID       int64  `json:"thread_id" validate:"required"`
	CommunityID    string `json:"community_id" validate:"required,max=80"`
	AuthorID       int64  `json:"author_id" validate:"required"`
}

// AddContestContent records thread content in an on-chain contest. Submitted
// by the contest-worker policy as a follow-up command, never directly by
// users, so it requires the system capability. Re-submission for the same
// (contest, thread) pair emits no second event.
func AddContestContent() execution.Command[AddContestContentPayload] {
	return execution.Command[AddContestContentPayload]{
		Name:     "contest.add-content",
		Requires: domain.CapSystem,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[AddContestContentPayload]) (any, []model.EventDraft, error) {
			action := model.ContestAction{
				ContestAddress: req.Payload.ContestAddress,
				ThreadID:       req.Payload.ThreadID,
				CommunityID:    req.Payload.CommunityID,
				AuthorID:       req.Payload.AuthorID,
			}
			if err := s.Contests().CreateAction(ctx, action); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					existing, getErr := s.Contests().GetAction(ctx, action.ContestAddress, action.ThreadID)
					if getErr != nil {
						return nil, nil, getErr
					}
					return existing, nil, nil
				}
				return nil, nil, err
			}

			aggregateID := threadAggregateID(action.ThreadID)
			drafts := []model.EventDraft{{
				Name:        domain.EventContestContentAdded,
				AggregateID: &aggregateID,
				Payload: domain.ContestContentAddedPayload{
					ContestAddress: action.ContestAddress,
					ThreadID:       action.ThreadID,
					CommunityID:    action.CommunityID,
					AuthorID:       action.AuthorID,
					CreatedAt:      clock(),
				},
			}}
			return &action, drafts, nil
		},
	}
}
