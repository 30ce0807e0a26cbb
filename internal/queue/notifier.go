package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"agorahub.app/backbone/internal/policy"
)

// StreamNotifier publishes user notifications onto a Redis stream consumed
// by the delivery edge (web sockets, email workers). Downstream consumers
// dedupe on their side; the relay may send the same notification twice.
type StreamNotifier struct {
	client *redis.Client
	stream string
}

func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream}
}

func (n *StreamNotifier) Notify(ctx context.Context, notification policy.Notification) error {
	if err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"user_id":      notification.UserID,
			"kind":         notification.Kind,
			"community_id": notification.CommunityID,
			"thread_id":    notification.ThreadID,
			"message":      notification.Message,
		},
	}).Err(); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}
