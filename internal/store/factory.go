package store

import (
	"agorahub.app/backbone/core/db"
)

// Stores provides typed accessors over a Querier. Bind it to a transaction
// via the tx runner, or to the pool for read-only paths.
type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Events() EventLogStore {
	return &eventLogStore{q: s.q}
}

func (s *Stores) Deliveries() DeliveryStore {
	return &deliveryStore{q: s.q}
}

func (s *Stores) DeadLetters() DeadLetterStore {
	return &deadLetterStore{q: s.q}
}

func (s *Stores) Communities() CommunityStore {
	return &communityStore{q: s.q}
}

func (s *Stores) Threads() ThreadStore {
	return &threadStore{q: s.q}
}

func (s *Stores) Comments() CommentStore {
	return &commentStore{q: s.q}
}

func (s *Stores) Xp() XpStore {
	return &xpStore{q: s.q}
}

func (s *Stores) Feed() FeedStore {
	return &feedStore{q: s.q}
}

func (s *Stores) Leaderboard() LeaderboardStore {
	return &leaderboardStore{q: s.q}
}

func (s *Stores) Contests() ContestStore {
	return &contestStore{q: s.q}
}
