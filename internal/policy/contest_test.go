package policy_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/policy"
	"agorahub.app/backbone/internal/service"
)

var _ = Describe("ContestPolicy", func() {
	var (
		ctx       context.Context
		stores    *mockStores
		submitter *mockSubmitter
		p         *policy.ContestPolicy
	)

	BeforeEach(func() {
		ctx = context.Background()
		stores = newMockStores()
		submitter = &mockSubmitter{}
		p = policy.NewContestPolicy(submitter)
	})

	It("submits one follow-up command per contest manager", func() {
		var payloads []service.AddContestContentPayload
		submitter.invokeFn = func(_ context.Context, name string, _ *string, actor domain.Actor, raw json.RawMessage) (any, error) {
			Expect(name).To(Equal("contest.add-content"))
			Expect(actor.Can(domain.CapSystem)).To(BeTrue())
			var pl service.AddContestContentPayload
			Expect(json.Unmarshal(raw, &pl)).To(Succeed())
			payloads = append(payloads, pl)
			return nil, nil
		}

		evt := eventWith(31, domain.EventThreadCreated, domain.ThreadCreatedPayload{
			ThreadID: 7, CommunityID: "gov", AuthorID: 3,
			ContestManagers: []string{"0xabc", "0xdef"},
		})

		Expect(p.Handle(ctx, stores, evt)).To(Succeed())

		Expect(payloads).To(HaveLen(2))
		Expect(payloads[0].ContestAddress).To(Equal("0xabc"))
		Expect(payloads[1].ContestAddress).To(Equal("0xdef"))
		Expect(payloads[0].ThreadID).To(Equal(int64(7)))
	})

	It("resubmits on upvotes so late-arriving contest threads still land", func() {
		submitter.invokeFn = func(_ context.Context, name string, _ *string, _ domain.Actor, _ json.RawMessage) (any, error) {
			Expect(name).To(Equal("contest.add-content"))
			return nil, nil
		}

		evt := eventWith(35, domain.EventThreadUpvoted, domain.ThreadUpvotedPayload{
			ThreadID: 7, CommunityID: "gov", VoterID: 5, AuthorID: 3, Upvotes: 2,
			ContestManagers: []string{"0xabc"},
		})

		Expect(p.Handle(ctx, stores, evt)).To(Succeed())
		Expect(submitter.invoked).To(HaveLen(1))
	})

	It("does nothing for threads outside any contest", func() {
		evt := eventWith(32, domain.EventThreadCreated, domain.ThreadCreatedPayload{
			ThreadID: 7, CommunityID: "gov", AuthorID: 3,
		})

		Expect(p.Handle(ctx, stores, evt)).To(Succeed())
		Expect(submitter.invoked).To(BeEmpty())
	})

	It("fails permanently when the command rejects the payload", func() {
		submitter.invokeFn = func(_ context.Context, _ string, _ *string, _ domain.Actor, _ json.RawMessage) (any, error) {
			return nil, &execution.ValidationError{Msg: "bad payload"}
		}
		evt := eventWith(33, domain.EventThreadCreated, domain.ThreadCreatedPayload{
			ThreadID: 7, CommunityID: "gov", AuthorID: 3,
			ContestManagers: []string{"0xabc"},
		})

		err := p.Handle(ctx, stores, evt)

		Expect(policy.IsPermanent(err)).To(BeTrue())
	})

	It("retries on infrastructure failures", func() {
		submitter.invokeFn = func(_ context.Context, _ string, _ *string, _ domain.Actor, _ json.RawMessage) (any, error) {
			return nil, errors.New("db down")
		}
		evt := eventWith(34, domain.EventThreadCreated, domain.ThreadCreatedPayload{
			ThreadID: 7, CommunityID: "gov", AuthorID: 3,
			ContestManagers: []string{"0xabc"},
		})

		err := p.Handle(ctx, stores, evt)

		Expect(err).To(HaveOccurred())
		Expect(policy.IsPermanent(err)).To(BeFalse())
	})
})
