package worker

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agorahub.app/backbone/internal/queue"
	"agorahub.app/backbone/internal/relay"
)

var _ = Describe("Worker", func() {
	var (
		ctx       context.Context
		consumer  *mockConsumer
		processor *mockProcessor
		w         *Worker
	)

	msg := queue.Message{ID: "1-0", EventID: 42, EventName: "ThreadCreated", Attempt: 1}

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		processor = &mockProcessor{}
		w = New(consumer, processor, Config{MaxWakeAttempts: 3})
	})

	Describe("ProcessMessage", func() {
		It("acks the wake-up once the event is fully relayed", func() {
			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())

			Expect(processor.processed).To(Equal([]int64{42}))
			Expect(consumer.acked).To(Equal([]string{"1-0"}))
			Expect(consumer.requeued).To(BeEmpty())
		})

		It("requeues while deliveries are still waiting on retry windows", func() {
			processor.processFn = func(context.Context, int64) (bool, error) {
				return false, nil
			}

			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())

			Expect(consumer.requeued).To(HaveLen(1))
			Expect(consumer.requeued[0].msg.EventID).To(Equal(int64(42)))
			Expect(consumer.acked).To(HaveLen(1)) // Requeue acks the old message first
		})

		It("acks an exhausted wake-up and leaves the event to the sweeper", func() {
			processor.processFn = func(context.Context, int64) (bool, error) {
				return false, nil
			}
			exhausted := msg
			exhausted.Attempt = 3

			Expect(w.ProcessMessage(ctx, exhausted)).To(Succeed())

			Expect(consumer.acked).To(Equal([]string{"1-0"}))
			Expect(consumer.requeued).To(BeEmpty())
		})

		It("leaves the message unacked on an infrastructure fault", func() {
			boom := &relay.Fault{Op: "load event", Err: errors.New("db down")}
			processor.processFn = func(context.Context, int64) (bool, error) {
				return false, boom
			}

			err := w.ProcessMessage(ctx, msg)

			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(consumer.acked).To(BeEmpty())
			Expect(consumer.requeued).To(BeEmpty())
		})

		It("still succeeds when the ack itself fails", func() {
			consumer.ackFn = func(context.Context, queue.Message) error {
				return errors.New("redis gone")
			}

			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())
		})
	})

	Describe("handleFailedMessage", func() {
		failure := errors.New("processing failed")

		It("requeues a failed message below the attempt cap", func() {
			w.handleFailedMessage(ctx, msg, failure)

			Expect(consumer.requeued).To(HaveLen(1))
			Expect(consumer.requeued[0].reason).To(Equal("processing failed"))
			Expect(consumer.acked).To(BeEmpty())
		})

		It("acks a message that failed too often, deferring to the sweeper", func() {
			exhausted := msg
			exhausted.Attempt = 3

			w.handleFailedMessage(ctx, exhausted, failure)

			Expect(consumer.acked).To(Equal([]string{"1-0"}))
			Expect(consumer.requeued).To(BeEmpty())
		})
	})

	Describe("processOneBatch", func() {
		It("routes a faulting message into failure handling and keeps going", func() {
			second := queue.Message{ID: "2-0", EventID: 43, EventName: "CommentCreated", Attempt: 1}
			consumer.readFn = func(context.Context) ([]queue.Message, error) {
				return []queue.Message{msg, second}, nil
			}
			processor.processFn = func(_ context.Context, eventID int64) (bool, error) {
				if eventID == 42 {
					return false, &relay.Fault{Op: "load event", Err: errors.New("db down")}
				}
				return true, nil
			}

			Expect(w.processOneBatch(ctx)).To(Succeed())

			Expect(processor.processed).To(Equal([]int64{42, 43}))
			Expect(consumer.requeued).To(HaveLen(1))
			Expect(consumer.requeued[0].msg.EventID).To(Equal(int64(42)))
			Expect(consumer.acked).To(Equal([]string{"2-0"}))
		})

		It("surfaces read failures to the run loop", func() {
			consumer.readFn = func(context.Context) ([]queue.Message, error) {
				return nil, errors.New("stream read timeout")
			}

			err := w.processOneBatch(ctx)

			Expect(err).To(MatchError(ContainSubstring("reading from stream")))
		})
	})
})
