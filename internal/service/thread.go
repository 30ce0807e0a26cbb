package service

import (
	"context"
	"errors"
	"fmt"

	"agorahub.app/backbone/common/id"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

type CreateThreadPayload struct {
	CommunityID     string   `json:"community_id" validate:"required,max=80"`
	Title           string   `json:"title" validate:"required,min=3,max=300"`
	Body            string   `json:"body" validate:"required"`
	TopicID         *int64   `json:"topic_id,omitempty"`
	ContestManagers []string `json:"contest_managers,omitempty" validate:"dive,max=120"`
}

// CreateThread opens a discussion thread and emits ThreadCreated.
func CreateThread() execution.Command[CreateThreadPayload] {
	return execution.Command[CreateThreadPayload]{
		Name:     "thread.create",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[CreateThreadPayload]) (any, []model.EventDraft, error) {
			if _, err := s.Communities().GetByID(ctx, req.Payload.CommunityID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil, execution.Conflict("community %q does not exist", req.Payload.CommunityID)
				}
				return nil, nil, err
			}

			thread := &model.Thread{
				ID:          id.New(),
				CommunityID: req.Payload.CommunityID,
				AuthorID:    req.Actor.UserID,
				Title:       req.Payload.Title,
				Body:        req.Payload.Body,
				TopicID:     req.Payload.TopicID,
			}
			if err := s.Threads().Create(ctx, thread); err != nil {
				return nil, nil, err
			}

			aggregateID := threadAggregateID(thread.ID)
			drafts := []model.EventDraft{{
				Name:        domain.EventThreadCreated,
				AggregateID: &aggregateID,
				Payload: domain.ThreadCreatedPayload{
					ThreadID:        thread.ID,
					CommunityID:     thread.CommunityID,
					AuthorID:        thread.AuthorID,
					Title:           thread.Title,
					TopicID:         thread.TopicID,
					ContestManagers: req.Payload.ContestManagers,
					CreatedAt:       thread.CreatedAt,
				},
			}}
			return thread, drafts, nil
		},
	}
}

type UpvoteThreadPayload struct {
	ThreadID        int64    `json:"thread_id" validate:"required"`
	ContestManagers []string `json:"contest_managers,omitempty" validate:"dive,max=120"`
}

// UpvoteThread bumps the upvote counter under an optimistic version check and
// emits ThreadUpvoted. A concurrent vote that races the version loses with a
// ConflictError and the caller retries.
func UpvoteThread() execution.Command[UpvoteThreadPayload] {
	return execution.Command[UpvoteThreadPayload]{
		Name:     "thread.upvote",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[UpvoteThreadPayload]) (any, []model.EventDraft, error) {
			thread, err := s.Threads().GetByID(ctx, req.Payload.ThreadID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil, execution.Conflict("thread %d does not exist", req.Payload.ThreadID)
				}
				return nil, nil, err
			}

			updated, err := s.Threads().Upvote(ctx, thread.ID, thread.Version)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil, execution.Conflict("thread %d version changed, retry", thread.ID)
				}
				return nil, nil, err
			}

			aggregateID := threadAggregateID(updated.ID)
			drafts := []model.EventDraft{{
				Name:        domain.EventThreadUpvoted,
				AggregateID: &aggregateID,
				Payload: domain.ThreadUpvotedPayload{
					ThreadID:        updated.ID,
					CommunityID:     updated.CommunityID,
					VoterID:         req.Actor.UserID,
					AuthorID:        updated.AuthorID,
					Upvotes:         updated.Upvotes,
					ContestManagers: req.Payload.ContestManagers,
					CreatedAt:       updated.UpdatedAt,
				},
			}}
			return updated, drafts, nil
		},
	}
}

func threadAggregateID(threadID int64) string {
	return fmt.Sprintf("thread:%d", threadID)
}
