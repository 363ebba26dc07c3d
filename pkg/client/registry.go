package client

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Subscription is the opaque token returned by Register. The zero value
// matches nothing.
type Subscription struct {
	id uuid.UUID
}

// String returns the token's identifier, for logging.
func (s Subscription) String() string {
	return s.id.String()
}

type registryEntry struct {
	sub      Subscription
	observer Observer
	active   atomic.Bool
}

// ObserverRegistry is an ordered collection of observers. Registering the
// same observer twice yields two independent subscriptions.
type ObserverRegistry struct {
	mu      sync.Mutex
	entries []*registryEntry
	byID    map[uuid.UUID]*registryEntry
	removed int // inactive entries still present in entries

	logger  zerolog.Logger
	metrics *Metrics
}

// NewObserverRegistry creates an empty registry
func NewObserverRegistry(logger zerolog.Logger, metrics *Metrics) *ObserverRegistry {
	return &ObserverRegistry{
		byID:    make(map[uuid.UUID]*registryEntry),
		logger:  logger,
		metrics: metrics,
	}
}

// Register appends an observer and returns its subscription token
func (r *ObserverRegistry) Register(o Observer) Subscription {
	entry := &registryEntry{
		sub:      Subscription{id: uuid.New()},
		observer: o,
	}
	entry.active.Store(true)

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.byID[entry.sub.id] = entry
	count := len(r.byID)
	r.mu.Unlock()

	r.metrics.RecordObservers(count)
	return entry.sub
}

// Deregister removes the subscription. It reports whether the token was
// registered. Once it returns, the observer receives no further callbacks.
func (r *ObserverRegistry) Deregister(s Subscription) bool {
	r.mu.Lock()
	entry, ok := r.byID[s.id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byID, s.id)
	entry.active.Store(false)
	r.removed++

	// Compact once the dead entries outnumber the live ones
	if r.removed > len(r.byID) {
		r.compactLocked()
	}
	count := len(r.byID)
	r.mu.Unlock()

	r.metrics.RecordObservers(count)
	return true
}

func (r *ObserverRegistry) compactLocked() {
	live := make([]*registryEntry, 0, len(r.byID))
	for _, e := range r.entries {
		if e.active.Load() {
			live = append(live, e)
		}
	}
	r.entries = live
	r.removed = 0
}

// Len returns the number of registered observers
func (r *ObserverRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Notify calls fn for every registered observer in registration order.
// Observers registered during the call are not included. An observer
// deregistered during the call is skipped if not yet reached. A panic in
// one observer is recovered and logged; delivery continues with the next.
func (r *ObserverRegistry) Notify(event string, fn func(Observer)) int {
	r.mu.Lock()
	snapshot := make([]*registryEntry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	delivered := 0
	for _, entry := range snapshot {
		if !entry.active.Load() {
			continue
		}
		if r.deliver(event, entry, fn) {
			delivered++
		}
	}

	r.metrics.RecordFanout(delivered)
	return delivered
}

func (r *ObserverRegistry) deliver(event string, entry *registryEntry, fn func(Observer)) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			r.metrics.RecordObserverPanic()
			r.logger.Error().
				Str("event", event).
				Str("subscription", entry.sub.String()).
				Err(fmt.Errorf("%v", rec)).
				Msg("observer panicked")
		}
	}()

	fn(entry.observer)
	return true
}
