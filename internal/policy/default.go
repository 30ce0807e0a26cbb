package policy

import (
	"agorahub.app/backbone/internal/cache"
)

// DefaultRegistry wires the full consumer set for one deployment. Both the
// API server (for replay) and the relay worker build the same registry so
// consumer names and subscriptions never drift between them.
func DefaultRegistry(bus CommandSubmitter, feedCache *cache.FeedCache, lb *cache.LeaderboardCache, notifier Notifier) (*Registry, error) {
	return NewRegistry(
		NewXpPolicy(),
		NewFeedPolicy(feedCache),
		NewLeaderboardPolicy(lb),
		NewNotificationsPolicy(NewBreakerNotifier(notifier)),
		NewContestPolicy(bus),
	)
}
