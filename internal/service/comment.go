package service

import (
	"context"
	"errors"

	"agorahub.app/backbone/common/id"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

type CreateCommentPayload struct {
	ThreadID         int64   `json:"thread_id" validate:"required"`
	Body             string  `json:"body" validate:"required"`
	ParentID         *int64  `json:"parent_id,omitempty"`
	MentionedUserIDs []int64 `json:"mentioned_user_ids,omitempty" validate:"max=25"`
}

// CreateComment appends a comment to a thread and emits CommentCreated.
// The thread's comment counter moves in the same transaction.
func CreateComment() execution.Command[CreateCommentPayload] {
	return execution.Command[CreateCommentPayload]{
		Name:     "comment.create",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[CreateCommentPayload]) (any, []model.EventDraft, error) {
			thread, err := s.Threads().GetByID(ctx, req.Payload.ThreadID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil, execution.Conflict("thread %d does not exist", req.Payload.ThreadID)
				}
				return nil, nil, err
			}

			if req.Payload.ParentID != nil {
				parent, err := s.Comments().GetByID(ctx, *req.Payload.ParentID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return nil, nil, execution.Conflict("parent comment %d does not exist", *req.Payload.ParentID)
					}
					return nil, nil, err
				}
				if parent.ThreadID != thread.ID {
					return nil, nil, execution.Conflict("parent comment belongs to another thread")
				}
			}

			comment := &model.Comment{
				ID:       id.New(),
				ThreadID: thread.ID,
				AuthorID: req.Actor.UserID,
				ParentID: req.Payload.ParentID,
				Body:     req.Payload.Body,
			}
			if err := s.Comments().Create(ctx, comment); err != nil {
				return nil, nil, err
			}
			if err := s.Threads().IncrementCommentCount(ctx, thread.ID); err != nil {
				return nil, nil, err
			}

			aggregateID := threadAggregateID(thread.ID)
			drafts := []model.EventDraft{{
				Name:        domain.EventCommentCreated,
				AggregateID: &aggregateID,
				Payload: domain.CommentCreatedPayload{
					CommentID:        comment.ID,
					ThreadID:         thread.ID,
					CommunityID:      thread.CommunityID,
					AuthorID:         comment.AuthorID,
					ThreadAuthorID:   thread.AuthorID,
					ParentID:         comment.ParentID,
					MentionedUserIDs: req.Payload.MentionedUserIDs,
					CreatedAt:        comment.CreatedAt,
				},
			}}
			return comment, drafts, nil
		},
	}
}
