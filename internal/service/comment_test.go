package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/service"
	"agorahub.app/backbone/internal/store"
)

var _ = Describe("comment.create", func() {
	var (
		ctx    context.Context
		stores *mockStores
		actor  domain.Actor
	)

	cmd := service.CreateComment()

	BeforeEach(func() {
		ctx = context.Background()
		stores = newMockStores()
		actor = domain.Actor{UserID: 42, Capabilities: []domain.Capability{domain.CapMember}}
		stores.threads.getByIDFn = func(context.Context, int64) (*model.Thread, error) {
			return &model.Thread{ID: 7, CommunityID: "gopher-hole", AuthorID: 9}, nil
		}
	})

	It("stores the comment, bumps the thread counter and emits CommentCreated", func() {
		result, drafts, err := cmd.Body(ctx, stores, execution.Request[service.CreateCommentPayload]{
			Actor: actor,
			Payload: service.CreateCommentPayload{
				ThreadID:         7,
				Body:             "well actually",
				MentionedUserIDs: []int64{11, 12},
			},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(stores.comments.created).To(HaveLen(1))
		Expect(stores.threads.commentCountIncs).To(Equal([]int64{7}))

		comment := result.(*model.Comment)
		Expect(comment.AuthorID).To(Equal(int64(42)))

		Expect(drafts).To(HaveLen(1))
		payload := drafts[0].Payload.(domain.CommentCreatedPayload)
		Expect(payload.CommentID).To(Equal(comment.ID))
		Expect(payload.ThreadAuthorID).To(Equal(int64(9)))
		Expect(payload.MentionedUserIDs).To(Equal([]int64{11, 12}))
	})

	It("accepts a reply whose parent sits on the same thread", func() {
		parentID := int64(100)
		stores.comments.getByIDFn = func(context.Context, int64) (*model.Comment, error) {
			return &model.Comment{ID: parentID, ThreadID: 7}, nil
		}

		_, drafts, err := cmd.Body(ctx, stores, execution.Request[service.CreateCommentPayload]{
			Actor:   actor,
			Payload: service.CreateCommentPayload{ThreadID: 7, Body: "reply", ParentID: &parentID},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(drafts[0].Payload.(domain.CommentCreatedPayload).ParentID).To(Equal(&parentID))
	})

	It("refuses a parent comment that belongs to another thread", func() {
		parentID := int64(100)
		stores.comments.getByIDFn = func(context.Context, int64) (*model.Comment, error) {
			return &model.Comment{ID: parentID, ThreadID: 8}, nil
		}

		_, _, err := cmd.Body(ctx, stores, execution.Request[service.CreateCommentPayload]{
			Actor:   actor,
			Payload: service.CreateCommentPayload{ThreadID: 7, Body: "reply", ParentID: &parentID},
		})

		Expect(execution.IsConflict(err)).To(BeTrue())
		Expect(stores.comments.created).To(BeEmpty())
	})

	It("refuses a comment on a thread that does not exist", func() {
		stores.threads.getByIDFn = func(context.Context, int64) (*model.Thread, error) {
			return nil, store.ErrNotFound
		}

		_, _, err := cmd.Body(ctx, stores, execution.Request[service.CreateCommentPayload]{
			Actor:   actor,
			Payload: service.CreateCommentPayload{ThreadID: 999, Body: "into the void"},
		})

		Expect(execution.IsConflict(err)).To(BeTrue())
	})
})

var _ = Describe("contest.add-content", func() {
	var (
		ctx    context.Context
		stores *mockStores
	)

	cmd := service.AddContestContent()
	system := domain.SystemActor()

	payload := service.AddContestContentPayload{
		ContestAddress: "0xabc",
		ThreadID:       7,
		CommunityID:    "gopher-hole",
		AuthorID:       9,
	}

	BeforeEach(func() {
		ctx = context.Background()
		stores = newMockStores()
	})

	It("records the action and emits ContestContentAdded", func() {
		_, drafts, err := cmd.Body(ctx, stores, execution.Request[service.AddContestContentPayload]{
			Actor:   system,
			Payload: payload,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(stores.contests.actions).To(HaveLen(1))
		Expect(drafts).To(HaveLen(1))
		Expect(drafts[0].Name).To(Equal(domain.EventContestContentAdded))
		added := drafts[0].Payload.(domain.ContestContentAddedPayload)
		Expect(added.ContestAddress).To(Equal("0xabc"))
		Expect(added.ThreadID).To(Equal(int64(7)))
	})

	It("returns the existing action without a second event on re-submission", func() {
		existing := &model.ContestAction{ContestAddress: "0xabc", ThreadID: 7}
		stores.contests.createActionFn = func(context.Context, model.ContestAction) error {
			return store.ErrDuplicate
		}
		stores.contests.getActionFn = func(context.Context, string, int64) (*model.ContestAction, error) {
			return existing, nil
		}

		result, drafts, err := cmd.Body(ctx, stores, execution.Request[service.AddContestContentPayload]{
			Actor:   system,
			Payload: payload,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(existing))
		Expect(drafts).To(BeEmpty())
	})
})
