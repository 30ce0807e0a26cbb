package relay_test

import (
	"context"
	"fmt"
	"time"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

// mockEventLogStore holds events in memory, keyed by id.
type mockEventLogStore struct {
	events map[int64]*model.Event

	markRelayedFn func(ctx context.Context, id int64) error
}

func (m *mockEventLogStore) put(evt model.Event) {
	if m.events == nil {
		m.events = make(map[int64]*model.Event)
	}
	copied := evt
	m.events[evt.ID] = &copied
}

func (m *mockEventLogStore) Append(_ context.Context, _ model.EventDraft) (*model.Event, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockEventLogStore) GetByID(_ context.Context, id int64) (*model.Event, error) {
	evt, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *evt
	return &copied, nil
}

func (m *mockEventLogStore) ListPending(_ context.Context, _ int32) ([]model.Event, error) {
	var out []model.Event
	for _, evt := range m.events {
		if !evt.Relayed {
			out = append(out, *evt)
		}
	}
	return out, nil
}

func (m *mockEventLogStore) MarkRelayed(ctx context.Context, id int64) error {
	if m.markRelayedFn != nil {
		return m.markRelayedFn(ctx, id)
	}
	evt, ok := m.events[id]
	if !ok {
		return store.ErrNotFound
	}
	evt.Relayed = true
	return nil
}

type deliveryKey struct {
	consumer string
	eventID  int64
}

// mockDeliveryStore keeps the per-consumer delivery state machine in memory.
// It shares the event map with mockEventLogStore so the ordering check can
// see aggregate siblings.
type mockDeliveryStore struct {
	deliveries map[deliveryKey]*model.Delivery
	events     *mockEventLogStore

	markRetryFn func(ctx context.Context, consumer string, eventID int64, attempts int, nextRetryAt time.Time, lastError string) error
}

func (m *mockDeliveryStore) get(consumer string, eventID int64) *model.Delivery {
	return m.deliveries[deliveryKey{consumer, eventID}]
}

func (m *mockDeliveryStore) set(d model.Delivery) {
	if m.deliveries == nil {
		m.deliveries = make(map[deliveryKey]*model.Delivery)
	}
	copied := d
	m.deliveries[deliveryKey{d.ConsumerName, d.EventID}] = &copied
}

func (m *mockDeliveryStore) ListForEvent(_ context.Context, eventID int64) ([]model.Delivery, error) {
	var out []model.Delivery
	for key, d := range m.deliveries {
		if key.eventID == eventID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDeliveryStore) MarkSucceeded(_ context.Context, consumer string, eventID int64) error {
	m.set(model.Delivery{
		ConsumerName: consumer,
		EventID:      eventID,
		Status:       model.DeliveryStatusSucceeded,
		UpdatedAt:    time.Now(),
	})
	return nil
}

func (m *mockDeliveryStore) MarkDeadLettered(_ context.Context, consumer string, eventID int64, reason string) error {
	m.set(model.Delivery{
		ConsumerName: consumer,
		EventID:      eventID,
		Status:       model.DeliveryStatusDeadLettered,
		LastError:    &reason,
		UpdatedAt:    time.Now(),
	})
	return nil
}

func (m *mockDeliveryStore) HasEarlierOpen(_ context.Context, consumer string, aggregateID string, beforeID int64, names []domain.EventName) (bool, error) {
	subscribed := make(map[domain.EventName]bool, len(names))
	for _, n := range names {
		subscribed[n] = true
	}
	for _, evt := range m.events.events {
		if evt.Relayed || evt.ID >= beforeID || !subscribed[evt.Name] {
			continue
		}
		if evt.AggregateID == nil || *evt.AggregateID != aggregateID {
			continue
		}
		d := m.deliveries[deliveryKey{consumer, evt.ID}]
		if d == nil || d.Status == model.DeliveryStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDeliveryStore) MarkRetry(ctx context.Context, consumer string, eventID int64, attempts int, nextRetryAt time.Time, lastError string) error {
	if m.markRetryFn != nil {
		return m.markRetryFn(ctx, consumer, eventID, attempts, nextRetryAt, lastError)
	}
	m.set(model.Delivery{
		ConsumerName: consumer,
		EventID:      eventID,
		Status:       model.DeliveryStatusPending,
		Attempts:     attempts,
		NextRetryAt:  &nextRetryAt,
		LastError:    &lastError,
		UpdatedAt:    time.Now(),
	})
	return nil
}

type mockDeadLetterStore struct {
	recorded []model.DeadLetter
	purged   []deliveryKey
}

func (m *mockDeadLetterStore) Record(_ context.Context, dl model.DeadLetter) error {
	for _, existing := range m.recorded {
		if existing.ConsumerName == dl.ConsumerName && existing.EventID == dl.EventID {
			return nil
		}
	}
	m.recorded = append(m.recorded, dl)
	return nil
}

func (m *mockDeadLetterStore) List(_ context.Context, consumer string, _ int32) ([]model.DeadLetter, error) {
	var out []model.DeadLetter
	for _, dl := range m.recorded {
		if consumer == "" || dl.ConsumerName == consumer {
			out = append(out, dl)
		}
	}
	return out, nil
}

func (m *mockDeadLetterStore) Purge(_ context.Context, consumer string, eventID int64) error {
	for i, dl := range m.recorded {
		if dl.ConsumerName == consumer && dl.EventID == eventID {
			m.recorded = append(m.recorded[:i], m.recorded[i+1:]...)
			m.purged = append(m.purged, deliveryKey{consumer, eventID})
			return nil
		}
	}
	return store.ErrNotFound
}

type mockStores struct {
	events      *mockEventLogStore
	deliveries  *mockDeliveryStore
	deadLetters *mockDeadLetterStore
}

func newMockStores() *mockStores {
	events := &mockEventLogStore{}
	return &mockStores{
		events:      events,
		deliveries:  &mockDeliveryStore{events: events},
		deadLetters: &mockDeadLetterStore{},
	}
}

func (m *mockStores) Events() store.EventLogStore         { return m.events }
func (m *mockStores) Deliveries() store.DeliveryStore     { return m.deliveries }
func (m *mockStores) DeadLetters() store.DeadLetterStore  { return m.deadLetters }
func (m *mockStores) Communities() store.CommunityStore   { return nil }
func (m *mockStores) Threads() store.ThreadStore          { return nil }
func (m *mockStores) Comments() store.CommentStore        { return nil }
func (m *mockStores) Xp() store.XpStore                   { return nil }
func (m *mockStores) Feed() store.FeedStore               { return nil }
func (m *mockStores) Leaderboard() store.LeaderboardStore { return nil }
func (m *mockStores) Contests() store.ContestStore        { return nil }

// mockTxRunner hands the handler the same in-memory stores; there is no real
// transaction to roll back here.
type mockTxRunner struct {
	stores *mockStores
}

func (m *mockTxRunner) WithTx(_ context.Context, fn func(s execution.StoreProvider) error) error {
	return fn(m.stores)
}

// fakeHandler is a scriptable policy.
type fakeHandler struct {
	name     string
	events   []domain.EventName
	handleFn func(ctx context.Context, s execution.StoreProvider, evt model.Event) error

	calls int
}

func (h *fakeHandler) Name() string               { return h.name }
func (h *fakeHandler) Events() []domain.EventName { return h.events }

func (h *fakeHandler) Handle(ctx context.Context, s execution.StoreProvider, evt model.Event) error {
	h.calls++
	if h.handleFn != nil {
		return h.handleFn(ctx, s, evt)
	}
	return nil
}
