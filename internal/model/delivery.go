package model

import (
	"time"

	"agorahub.app/backbone/internal/domain"
)

type DeliveryStatus string

const (
	DeliveryStatusPending      DeliveryStatus = "pending"
	DeliveryStatusSucceeded    DeliveryStatus = "succeeded"
	DeliveryStatusDeadLettered DeliveryStatus = "dead_lettered"
)

// Delivery tracks one (consumer, event) pair through the relay. An event is
// relayed only when every registered consumer's delivery is terminal.
type Delivery struct {
	ConsumerName string
	EventID      int64
	Status       DeliveryStatus
	Attempts     int
	NextRetryAt  *time.Time
	LastError    *string
	UpdatedAt    time.Time
}

// Terminal reports whether this delivery needs no further relay work.
func (d Delivery) Terminal() bool {
	return d.Status == DeliveryStatusSucceeded || d.Status == DeliveryStatusDeadLettered
}

// DeadLetter records a terminal consumer failure for operator inspection and
// manual replay. Keyed by (consumer_name, event_id); duplicate writes are
// no-ops.
type DeadLetter struct {
	ConsumerName string
	EventID      int64
	EventName    domain.EventName
	Reason       string
	FailedAt     time.Time
}
