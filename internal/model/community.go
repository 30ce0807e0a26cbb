package model

import "time"

// Community is a tenant. Its ID is a slug and doubles as the aggregate ID on
// community-scoped events.
type Community struct {
	ID        string
	Name      string
	CreatorID int64
	CreatedAt time.Time
}
