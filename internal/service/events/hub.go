package events

import (
	"context"
	"sync"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Hub broadcasts events without ever blocking the publisher: a subscriber
// whose queue is full misses the event and the drop is logged.
type Hub struct {
	// mu guards subscribers and closed.
	mu sync.RWMutex
	// subscribers maps subscription ids to their queues.
	subscribers map[uint64]chan alert.Event
	// nextID is the id of the next subscription.
	nextID uint64
	// buffer is the queue length of new subscriptions.
	buffer int
	// closed is set once Close ran.
	closed bool
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Hub{
		subscribers: make(map[uint64]chan alert.Event),
		buffer:      buffer,
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe() (<-chan alert.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan alert.Event, h.buffer)
	if h.closed {
		close(ch)

		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if sub, ok := h.subscribers[id]; ok {
				delete(h.subscribers, id)
				close(sub)
			}
		})
	}
}

// OnStateChanged publishes ev to every subscriber.
func (h *Hub) OnStateChanged(ctx context.Context, ev alert.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			logger.WarnKV(ctx, "Subscriber queue is full, dropping event",
				"subscriber", id,
				"session_id", ev.Session.ID,
				"state", ev.Session.State,
			)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

// Close ends every subscription; later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}
