package policy

import (
	"fmt"
	"sort"

	"agorahub.app/backbone/internal/domain"
)

// Registry is the fixed consumer set for one relay deployment. It is built
// once at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	byName  map[string]Handler
	byEvent map[domain.EventName][]Handler
	names   []string
}

// NewRegistry indexes handlers by name and by subscribed event. Duplicate
// names and subscriptions to unknown event names are startup errors; a typo
// here would otherwise silently drop deliveries.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]Handler, len(handlers)),
		byEvent: make(map[domain.EventName][]Handler),
	}
	for _, h := range handlers {
		name := h.Name()
		if name == "" {
			return nil, fmt.Errorf("policy with empty name")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate policy name %q", name)
		}
		events := h.Events()
		if len(events) == 0 {
			return nil, fmt.Errorf("policy %q subscribes to no events", name)
		}
		for _, evt := range events {
			if !evt.Valid() {
				return nil, fmt.Errorf("policy %q subscribes to unknown event %q", name, evt)
			}
			r.byEvent[evt] = append(r.byEvent[evt], h)
		}
		r.byName[name] = h
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// For returns the handler registered under name.
func (r *Registry) For(name string) (Handler, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// Subscribers returns the handlers that consume the given event, in
// registration order.
func (r *Registry) Subscribers(evt domain.EventName) []Handler {
	return r.byEvent[evt]
}

// Consumers returns every registered policy name, sorted.
func (r *Registry) Consumers() []string {
	return r.names
}
