package model

import (
	"encoding/json"
	"time"

	"agorahub.app/backbone/internal/domain"
)

// Event is a row in the outbox. Immutable once committed; only the relayed
// flag ever changes, and only from false to true.
type Event struct {
	ID          int64
	Name        domain.EventName
	AggregateID *string
	Payload     json.RawMessage
	CreatedAt   time.Time
	Relayed     bool
}

// EventDraft is an event emitted by a command body, not yet persisted.
// The outbox assigns the ID (and with it the global relay order) at commit.
type EventDraft struct {
	Name        domain.EventName
	AggregateID *string
	Payload     any
}
