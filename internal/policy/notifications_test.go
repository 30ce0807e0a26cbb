package policy_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/policy"
)

var _ = Describe("NotificationsPolicy", func() {
	var (
		ctx      context.Context
		stores   *mockStores
		notifier *mockNotifier
		p        *policy.NotificationsPolicy
	)

	BeforeEach(func() {
		ctx = context.Background()
		stores = newMockStores()
		notifier = &mockNotifier{}
		p = policy.NewNotificationsPolicy(notifier)
	})

	It("notifies the thread author and mentioned users on a comment", func() {
		evt := eventWith(21, domain.EventCommentCreated, domain.CommentCreatedPayload{
			CommentID: 5, ThreadID: 7, CommunityID: "gov",
			AuthorID: 3, ThreadAuthorID: 1, MentionedUserIDs: []int64{8, 9},
		})

		Expect(p.Handle(ctx, stores, evt)).To(Succeed())

		Expect(notifier.sent).To(HaveLen(3))
		Expect(notifier.sent[0].UserID).To(Equal(int64(1)))
		Expect(notifier.sent[0].Kind).To(Equal("comment"))
		Expect(notifier.sent[1].Kind).To(Equal("mention"))
		Expect(notifier.sent[2].UserID).To(Equal(int64(9)))
	})

	It("does not notify authors about their own activity", func() {
		evt := eventWith(22, domain.EventCommentCreated, domain.CommentCreatedPayload{
			CommentID: 5, ThreadID: 7, CommunityID: "gov",
			AuthorID: 3, ThreadAuthorID: 3, MentionedUserIDs: []int64{3},
		})

		Expect(p.Handle(ctx, stores, evt)).To(Succeed())
		Expect(notifier.sent).To(BeEmpty())
	})

	It("notifies the author of an upvoted thread", func() {
		evt := eventWith(23, domain.EventThreadUpvoted, domain.ThreadUpvotedPayload{
			ThreadID: 7, CommunityID: "gov", VoterID: 9, AuthorID: 3,
		})

		Expect(p.Handle(ctx, stores, evt)).To(Succeed())

		Expect(notifier.sent).To(HaveLen(1))
		Expect(notifier.sent[0].UserID).To(Equal(int64(3)))
		Expect(notifier.sent[0].Kind).To(Equal("upvote"))
	})

	It("surfaces downstream errors for retry", func() {
		notifier.notifyFn = func(_ context.Context, _ policy.Notification) error {
			return errors.New("channel down")
		}
		evt := eventWith(24, domain.EventThreadUpvoted, domain.ThreadUpvotedPayload{
			ThreadID: 7, CommunityID: "gov", VoterID: 9, AuthorID: 3,
		})

		err := p.Handle(ctx, stores, evt)

		Expect(err).To(HaveOccurred())
		Expect(policy.IsPermanent(err)).To(BeFalse())
	})
})

var _ = Describe("BreakerNotifier", func() {
	It("fails fast once consecutive failures trip the breaker", func() {
		ctx := context.Background()
		inner := &mockNotifier{notifyFn: func(_ context.Context, _ policy.Notification) error {
			return errors.New("channel down")
		}}
		breaker := policy.NewBreakerNotifier(inner)

		calls := 0
		inner.notifyFn = func(_ context.Context, _ policy.Notification) error {
			calls++
			return errors.New("channel down")
		}

		for i := 0; i < 5; i++ {
			Expect(breaker.Notify(ctx, policy.Notification{UserID: 1})).NotTo(Succeed())
		}
		Expect(calls).To(Equal(5))

		// Open circuit: the downstream is no longer called.
		Expect(breaker.Notify(ctx, policy.Notification{UserID: 1})).NotTo(Succeed())
		Expect(calls).To(Equal(5))
	})
})
