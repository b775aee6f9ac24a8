/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package credential

import "sync"

// EventKind is a kind of credential change.
type EventKind int

// Credential events.
const (
	// EventUpdated is published when a new token pair is stored (login or refresh).
	EventUpdated EventKind = iota
	// EventCleared is published when the credential is removed (logout or failed refresh).
	EventCleared
	// EventInvalidated is published when the backend reports the session as forbidden.
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "updated"
	case EventCleared:
		return "cleared"
	case EventInvalidated:
		return "invalidated"
	}
	return "unknown"
}

// Event describes a credential change.
type Event struct {
	Kind       EventKind
	Credential Credential
}

// Bus delivers credential events to subscribers synchronously, in subscription order.
// The zero value is not usable, use NewBus.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
	order  []int
}

// NewBus creates a new Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that unregisters it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish calls every subscriber with e.
// Subscribers must not call Subscribe or unsubscribe from inside the callback.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}
