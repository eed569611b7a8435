package bus

import (
	"slices"
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
//
// Two kinds of subscribers exist. Channel subscribers (Subscribe) are fed
// without blocking and miss events when their buffer is full; they suit UI
// refreshes. Handlers (Handle) run synchronously inside Publish, in
// registration order, and never miss an event; they carry lifecycle
// transitions between components.
type Bus struct {
	mu       sync.RWMutex
	subs     map[int]*subscription
	handlers map[int]*handler
	next     int
}

type subscription struct {
	namespace string
	ch        chan Event
}

type handler struct {
	namespace string
	fn        func(Event)
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs:     make(map[int]*subscription),
		handlers: make(map[int]*handler),
	}
}

// Publish delivers evt to every subscriber whose namespace is a prefix of
// evt.Kind. Handlers run on the caller's goroutine after channel subscribers
// have been offered the event; a handler may publish further events.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Drop event if subscriber is full (non-blocking).
			}
		}
	}
	ids := make([]int, 0, len(b.handlers))
	for id, h := range b.handlers {
		if strings.HasPrefix(evt.Kind, h.namespace) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.handlers[id].fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Handle registers fn to run synchronously for every event matching the
// namespace prefix. Returns a function that removes the handler.
func (b *Bus) Handle(namespace string, fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = &handler{namespace: namespace, fn: fn}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}
