package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventName is the closed set of domain events the relay can carry.
// Dispatch is always an exhaustive switch over these constants; an unknown
// name is an error, never silently ignored.
type EventName string

const (
	EventCommunityCreated    EventName = "CommunityCreated"
	EventThreadCreated       EventName = "ThreadCreated"
	EventThreadUpvoted       EventName = "ThreadUpvoted"
	EventCommentCreated      EventName = "CommentCreated"
	EventContestContentAdded EventName = "ContestContentAdded"
)

// AllEventNames lists every known event name, in no particular order.
func AllEventNames() []EventName {
	return []EventName{
		EventCommunityCreated,
		EventThreadCreated,
		EventThreadUpvoted,
		EventCommentCreated,
		EventContestContentAdded,
	}
}

func (n EventName) Valid() bool {
	switch n {
	case EventCommunityCreated, EventThreadCreated, EventThreadUpvoted,
		EventCommentCreated, EventContestContentAdded:
		return true
	}
	return false
}

type CommunityCreatedPayload struct {
	CommunityID string    `json:"community_id"`
	Name        string    `json:"name"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type ThreadCreatedPayload struct {
	ThreadID        int64     `json:"thread_id"`
	CommunityID     string    `json:"community_id"`
	AuthorID        int64     `json:"author_id"`
	Title           string    `json:"title"`
	TopicID         *int64    `json:"topic_id,omitempty"`
	ContestManagers []string  `json:"contest_managers,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type ThreadUpvotedPayload struct {
	ThreadID        int64     `json:"thread_id"`
	CommunityID     string    `json:"community_id"`
	VoterID         int64     `json:"voter_id"`
	AuthorID        int64     `json:"author_id"`
	Upvotes         int       `json:"upvotes"`
	ContestManagers []string  `json:"contest_managers,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type CommentCreatedPayload struct {
	CommentID        int64     `json:"comment_id"`
	ThreadID         int64     `json:"thread_id"`
	CommunityID      string    `json:"community_id"`
	AuthorID         int64     `json:"author_id"`
	ThreadAuthorID   int64     `json:"thread_author_id"`
	ParentID         *int64    `json:"parent_id,omitempty"`
	MentionedUserIDs []int64   `json:"mentioned_user_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type ContestContentAddedPayload struct {
	ContestAddress string    `json:"contest_address"`
	ThreadID       int64     `json:"thread_id"`
	CommunityID    string    `json:"community_id"`
	AuthorID       int64     `json:"author_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrUnknownEvent is returned by DecodePayload for names outside the closed set.
type ErrUnknownEvent struct {
	Name EventName
}

func (e *ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event name %q", string(e.Name))
}

// DecodePayload unmarshals raw into the typed payload struct for name.
// This is the single dispatch point between the wire representation and the
// typed event set.
func DecodePayload(name EventName, raw json.RawMessage) (any, error) {
	switch name {
	case EventCommunityCreated:
		return decode[CommunityCreatedPayload](name, raw)
	case EventThreadCreated:
		return decode[ThreadCreatedPayload](name, raw)
	case EventThreadUpvoted:
		return decode[ThreadUpvotedPayload](name, raw)
	case EventCommentCreated:
		return decode[CommentCreatedPayload](name, raw)
	case EventContestContentAdded:
		return decode[ContestContentAddedPayload](name, raw)
	default:
		return nil, &ErrUnknownEvent{Name: name}
	}
}

func decode[P any](name EventName, raw json.RawMessage) (P, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decoding %s payload: %w", name, err)
	}
	return p, nil
}
