package execution_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
)

type registerPayload struct {
	Name   string `json:"name" validate:"required,min=3"`
	Points int    `json:"points" validate:"omitempty,min=1"`
}

func memberActor() domain.Actor {
	return domain.Actor{UserID: 42, Capabilities: []domain.Capability{domain.CapMember}}
}

var _ = Describe("Bus", func() {
	var (
		ctx      context.Context
		stores   *mockStores
		txRunner *mockTxRunner
		notifier *mockNotifier
		bus      *execution.Bus
	)

	newCommand := func(body func(ctx context.Context, s execution.StoreProvider, req execution.Request[registerPayload]) (any, []model.EventDraft, error)) execution.Command[registerPayload] {
		return execution.Command[registerPayload]{
			Name:     "member.register",
			Requires: domain.CapMember,
			Body:     body,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		stores = newMockStores()
		txRunner = &mockTxRunner{stores: stores}
		notifier = &mockNotifier{}
		bus = execution.NewBus(txRunner, stores, notifier)
	})

	Describe("Execute", func() {
		It("runs the body in a transaction and appends events with it", func() {
			agg := "community:gov"
			cmd := newCommand(func(_ context.Context, s execution.StoreProvider, req execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				Expect(req.Actor.UserID).To(Equal(int64(42)))
				return "registered", []model.EventDraft{{
					Name:        domain.EventCommunityCreated,
					AggregateID: &agg,
					Payload:     domain.CommunityCreatedPayload{CommunityID: "gov"},
				}}, nil
			})

			result, err := execution.Execute(ctx, bus, cmd, &agg, memberActor(), registerPayload{Name: "alice"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("registered"))
			Expect(txRunner.calls).To(Equal(1))
			Expect(stores.events.appended).To(HaveLen(1))
			Expect(stores.events.appended[0].Name).To(Equal(domain.EventCommunityCreated))
			Expect(*stores.events.appended[0].AggregateID).To(Equal("community:gov"))
		})

		It("wakes the notifier with the committed events, after the transaction", func() {
			cmd := newCommand(func(_ context.Context, _ execution.StoreProvider, _ execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				return nil, []model.EventDraft{
					{Name: domain.EventThreadCreated},
					{Name: domain.EventThreadUpvoted},
				}, nil
			})

			_, err := execution.Execute(ctx, bus, cmd, nil, memberActor(), registerPayload{Name: "alice"})

			Expect(err).NotTo(HaveOccurred())
			Expect(notifier.woken).To(HaveLen(1))
			Expect(notifier.woken[0]).To(HaveLen(2))
			Expect(notifier.woken[0][0].ID).To(Equal(int64(1)))
			Expect(notifier.woken[0][1].ID).To(Equal(int64(2)))
		})

		It("still succeeds when the notifier fails", func() {
			notifier.wakeFn = func(_ context.Context, _ []model.Event) error {
				return errors.New("redis down")
			}
			cmd := newCommand(func(_ context.Context, _ execution.StoreProvider, _ execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				return "ok", []model.EventDraft{{Name: domain.EventThreadCreated}}, nil
			})

			result, err := execution.Execute(ctx, bus, cmd, nil, memberActor(), registerPayload{Name: "alice"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("ok"))
		})

		It("does not wake the notifier when no events were emitted", func() {
			cmd := newCommand(func(_ context.Context, _ execution.StoreProvider, _ execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				return "quiet", nil, nil
			})

			_, err := execution.Execute(ctx, bus, cmd, nil, memberActor(), registerPayload{Name: "alice"})

			Expect(err).NotTo(HaveOccurred())
			Expect(notifier.woken).To(BeEmpty())
		})

		It("rejects an invalid payload before touching the transaction", func() {
			cmd := newCommand(nil)

			_, err := execution.Execute(ctx, bus, cmd, nil, memberActor(), registerPayload{Name: "ab"})

			Expect(execution.IsValidation(err)).To(BeTrue())
			Expect(txRunner.calls).To(BeZero())
			Expect(notifier.woken).To(BeEmpty())
		})

		It("rejects an actor without the required capability", func() {
			cmd := newCommand(nil)
			stranger := domain.Actor{UserID: 7}

			_, err := execution.Execute(ctx, bus, cmd, nil, stranger, registerPayload{Name: "alice"})

			Expect(execution.IsAuthorization(err)).To(BeTrue())
			Expect(txRunner.calls).To(BeZero())
		})

		It("grants access through capability implication", func() {
			cmd := newCommand(func(_ context.Context, _ execution.StoreProvider, _ execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				return "ok", nil, nil
			})
			admin := domain.Actor{UserID: 1, Capabilities: []domain.Capability{domain.CapAdmin}}

			_, err := execution.Execute(ctx, bus, cmd, nil, admin, registerPayload{Name: "alice"})

			Expect(err).NotTo(HaveOccurred())
		})

		It("propagates body errors and skips the wake-up", func() {
			cmd := newCommand(func(_ context.Context, _ execution.StoreProvider, _ execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				return nil, nil, execution.Conflict("version changed")
			})

			_, err := execution.Execute(ctx, bus, cmd, nil, memberActor(), registerPayload{Name: "alice"})

			Expect(execution.IsConflict(err)).To(BeTrue())
			Expect(notifier.woken).To(BeEmpty())
		})

		It("fails the whole command when an event append fails", func() {
			stores.events.appendFn = func(_ context.Context, _ model.EventDraft) (*model.Event, error) {
				return nil, errors.New("insert failed")
			}
			cmd := newCommand(func(_ context.Context, _ execution.StoreProvider, _ execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				return "ok", []model.EventDraft{{Name: domain.EventThreadCreated}}, nil
			})

			_, err := execution.Execute(ctx, bus, cmd, nil, memberActor(), registerPayload{Name: "alice"})

			Expect(err).To(MatchError(ContainSubstring("insert failed")))
			Expect(notifier.woken).To(BeEmpty())
		})
	})

	Describe("Run", func() {
		query := execution.Query[registerPayload]{
			Name:     "member.lookup",
			Requires: domain.CapMember,
			Body: func(_ context.Context, s execution.StoreProvider, req execution.Request[registerPayload]) (any, error) {
				return s.Xp().GetBalance(context.Background(), req.Actor.UserID, req.Payload.Name)
			},
		}

		It("runs against the pool-bound stores without a transaction", func() {
			stores.xp.getBalanceFn = func(_ context.Context, userID int64, communityID string) (int64, error) {
				Expect(userID).To(Equal(int64(42)))
				Expect(communityID).To(Equal("gov"))
				return 17, nil
			}

			result, err := execution.Run(ctx, bus, query, memberActor(), registerPayload{Name: "gov"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(int64(17)))
			Expect(txRunner.calls).To(BeZero())
		})

		It("validates query params", func() {
			_, err := execution.Run(ctx, bus, query, memberActor(), registerPayload{})

			Expect(execution.IsValidation(err)).To(BeTrue())
		})
	})

	Describe("raw invocation", func() {
		BeforeEach(func() {
			execution.RegisterCommand(bus, newCommand(func(_ context.Context, _ execution.StoreProvider, req execution.Request[registerPayload]) (any, []model.EventDraft, error) {
				return req.Payload.Name, nil, nil
			}))
			execution.RegisterQuery(bus, execution.Query[registerPayload]{
				Name:     "member.lookup",
				Requires: domain.CapMember,
				Body: func(_ context.Context, _ execution.StoreProvider, req execution.Request[registerPayload]) (any, error) {
					return req.Payload.Name, nil
				},
			})
		})

		It("dispatches a command by name", func() {
			result, err := bus.InvokeCommand(ctx, "member.register", nil, memberActor(), json.RawMessage(`{"name":"alice"}`))

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("alice"))
		})

		It("returns ErrUnknownOperation for an unregistered name", func() {
			_, err := bus.InvokeCommand(ctx, "member.destroy", nil, memberActor(), json.RawMessage(`{}`))

			Expect(err).To(MatchError(execution.ErrUnknownOperation))
		})

		It("refuses to invoke a query as a command", func() {
			_, err := bus.InvokeCommand(ctx, "member.lookup", nil, memberActor(), json.RawMessage(`{"name":"alice"}`))

			Expect(err).To(MatchError(execution.ErrUnknownOperation))
		})

		It("rejects unknown payload fields", func() {
			_, err := bus.InvokeCommand(ctx, "member.register", nil, memberActor(), json.RawMessage(`{"name":"alice","extra":true}`))

			Expect(execution.IsValidation(err)).To(BeTrue())
		})

		It("treats an empty body as an empty object", func() {
			_, err := bus.InvokeQuery(ctx, "member.lookup", memberActor(), nil)

			// Empty params still fail validation, not decoding.
			Expect(execution.IsValidation(err)).To(BeTrue())
		})

		It("exposes a schema per registered operation", func() {
			schemas := bus.Schemas()

			Expect(schemas).To(HaveKey("member.register"))
			Expect(schemas).To(HaveKey("member.lookup"))
			Expect(schemas["member.register"]).NotTo(BeNil())
		})
	})
})
