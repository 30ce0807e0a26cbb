package execution_test

import (
	"context"
	"time"

	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
	"agorahub.app/backbone/internal/store"
)

type mockEventLogStore struct {
	appendFn      func(ctx context.Context, draft model.EventDraft) (*model.Event, error)
	getByIDFn     func(ctx context.Context, id int64) (*model.Event, error)
	listPendingFn func(ctx context.Context, limit int32) ([]model.Event, error)
	markRelayedFn func(ctx context.Context, id int64) error

	appended []model.Event
	nextID   int64
}

func (m *mockEventLogStore) Append(ctx context.Context, draft model.EventDraft) (*model.Event, error) {
	if m.appendFn != nil {
		return m.appendFn(ctx, draft)
	}
	m.nextID++
	evt := model.Event{
		ID:        m.nextID,
		Name:      draft.Name,
		CreatedAt: time.Now(),
	}
	if draft.AggregateID != nil {
		agg := *draft.AggregateID
		evt.AggregateID = &agg
	}
	m.appended = append(m.appended, evt)
	return &evt, nil
}

func (m *mockEventLogStore) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockEventLogStore) ListPending(ctx context.Context, limit int32) ([]model.Event, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockEventLogStore) MarkRelayed(ctx context.Context, id int64) error {
	if m.markRelayedFn != nil {
		return m.markRelayedFn(ctx, id)
	}
	return nil
}

type mockCommunityStore struct {
	getByIDFn func(ctx context.Context, id string) (*model.Community, error)
	createFn  func(ctx context.Context, c *model.Community) error
}

func (m *mockCommunityStore) GetByID(ctx context.Context, id string) (*model.Community, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockCommunityStore) Create(ctx context.Context, c *model.Community) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}

type mockXpStore struct {
	insertAwardFn func(ctx context.Context, award model.XpAward) error
	addBalanceFn  func(ctx context.Context, userID int64, communityID string, points int) error
	getBalanceFn  func(ctx context.Context, userID int64, communityID string) (int64, error)
	sumAwardsFn   func(ctx context.Context, userID int64, communityID string) (int64, error)
}

func (m *mockXpStore) InsertAward(ctx context.Context, award model.XpAward) error {
	if m.insertAwardFn != nil {
		return m.insertAwardFn(ctx, award)
	}
	return nil
}

func (m *mockXpStore) AddBalance(ctx context.Context, userID int64, communityID string, points int) error {
	if m.addBalanceFn != nil {
		return m.addBalanceFn(ctx, userID, communityID, points)
	}
	return nil
}

func (m *mockXpStore) GetBalance(ctx context.Context, userID int64, communityID string) (int64, error) {
	if m.getBalanceFn != nil {
		return m.getBalanceFn(ctx, userID, communityID)
	}
	return 0, nil
}

func (m *mockXpStore) SumAwards(ctx context.Context, userID int64, communityID string) (int64, error) {
	if m.sumAwardsFn != nil {
		return m.sumAwardsFn(ctx, userID, communityID)
	}
	return 0, nil
}

// mockStores satisfies execution.StoreProvider. Tests only populate the
// stores their operation touches.
type mockStores struct {
	events      *mockEventLogStore
	communities *mockCommunityStore
	xp          *mockXpStore
}

func newMockStores() *mockStores {
	return &mockStores{
		events:      &mockEventLogStore{},
		communities: &mockCommunityStore{},
		xp:          &mockXpStore{},
	}
}

func (m *mockStores) Events() store.EventLogStore         { return m.events }
func (m *mockStores) Communities() store.CommunityStore   { return m.communities }
func (m *mockStores) Xp() store.XpStore                   { return m.xp }
func (m *mockStores) Deliveries() store.DeliveryStore     { return nil }
func (m *mockStores) DeadLetters() store.DeadLetterStore  { return nil }
func (m *mockStores) Threads() store.ThreadStore          { return nil }
func (m *mockStores) Comments() store.CommentStore        { return nil }
func (m *mockStores) Feed() store.FeedStore               { return nil }
func (m *mockStores) Leaderboard() store.LeaderboardStore { return nil }
func (m *mockStores) Contests() store.ContestStore        { return nil }

type mockTxRunner struct {
	stores   *mockStores
	withTxFn func(ctx context.Context, fn func(s execution.StoreProvider) error) error
	calls    int
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(s execution.StoreProvider) error) error {
	m.calls++
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(m.stores)
}

type mockNotifier struct {
	wakeFn func(ctx context.Context, events []model.Event) error
	woken  [][]model.Event
}

func (m *mockNotifier) Wake(ctx context.Context, events []model.Event) error {
	m.woken = append(m.woken, events)
	if m.wakeFn != nil {
		return m.wakeFn(ctx, events)
	}
	return nil
}
