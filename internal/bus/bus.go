// Package bus provides non-blocking in-process fan-out of accepted
// detections from the ingestion subscriber to consumers (websocket push,
// reconciler). Publish never blocks: when a subscriber's channel is full the
// detection is dropped for that subscriber — consumers recover missed events
// at the next snapshot refresh.
package bus

import (
	"errors"
	"sync"

	"smartdate"
)

var (
	ErrClosed            = errors.New("bus closed")
	ErrDuplicateSub      = errors.New("subscriber id already registered")
	ErrUnknownSubscriber = errors.New("unknown subscriber id")
)

// Bus distributes detections to named subscribers over caller-owned channels.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan<- smartdate.Detection
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[string]chan<- smartdate.Detection)}
}

// Subscribe registers a caller-owned channel under id. The caller keeps
// ownership: the bus never closes subscriber channels.
func (b *Bus) Subscribe(id string, ch chan<- smartdate.Detection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if _, exists := b.subs[id]; exists {
		return ErrDuplicateSub
	}
	b.subs[id] = ch
	return nil
}

// Unsubscribe removes a subscriber; pending items in its channel are the
// caller's to drain.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subs[id]; !exists {
		return ErrUnknownSubscriber
	}
	delete(b.subs, id)
	return nil
}

// Publish delivers d to every subscriber whose channel has room and returns
// the number of successful deliveries.
func (b *Bus) Publish(d smartdate.Detection) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- d:
			delivered++
		default:
			// subscriber lagging; drop rather than block the delivery path
		}
	}
	return delivered
}

// Close marks the bus closed. Further Publish calls are no-ops; Subscribe
// returns ErrClosed. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]chan<- smartdate.Detection)
}
