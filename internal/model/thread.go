package model

import "time"

// Thread is the main discussion aggregate. Version implements optimistic
// concurrency: updates must match the loaded version or fail with a conflict.
type Thread struct {
	ID           int64
	CommunityID  string
	AuthorID     int64
	Title        string
	Body         string
	TopicID      *int64
	Upvotes      int
	CommentCount int
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Comment struct {
	ID        int64
	ThreadID  int64
	AuthorID  int64
	ParentID  *int64
	Body      string
	CreatedAt time.Time
}
