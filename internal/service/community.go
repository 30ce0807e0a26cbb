package service

import (
	"context"
	"errors"
	"time"

	"agorahub.app/backbone/common"
	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

type CreateCommunityPayload struct {
	Name string `json:"name" validate:"required,min=3,max=120"`
	Slug string `json:"slug,omitempty" validate:"omitempty,max=80"`
}

// CreateCommunity provisions a new tenant. The community ID is a slug derived
// from the requested slug or the display name.
func CreateCommunity() execution.Command[CreateCommunityPayload] {
	return execution.Command[CreateCommunityPayload]{
		Name:     "community.create",
		Requires: domain.CapMember,
		Body: func(ctx context.Context, s execution.StoreProvider, req execution.Request[CreateCommunityPayload]) (any, []model.EventDraft, error) {
			slug, err := common.Slugify(req.Payload.Slug, req.Payload.Name)
			if err != nil {
				return nil, nil, &execution.ValidationError{Msg: "community slug", Err: err}
			}

			community := &model.Community{
				ID:        slug,
				Name:      req.Payload.Name,
				CreatorID: req.Actor.UserID,
			}
			if err := s.Communities().Create(ctx, community); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return nil, nil, execution.Conflict("community %q already exists", slug)
				}
				return nil, nil, err
			}

			drafts := []model.EventDraft{{
				Name:        domain.EventCommunityCreated,
				AggregateID: &community.ID,
				Payload: domain.CommunityCreatedPayload{
					CommunityID: community.ID,
					Name:        community.Name,
					CreatorID:   community.CreatorID,
					CreatedAt:   community.CreatedAt,
				},
			}}
			return community, drafts, nil
		},
	}
}

var clock = time.Now
