package app

import (
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/domain"
)

const subscriberBuffer = 256

// EventHub fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.Event
	nextID int
	logger *zap.Logger
}

// NewEventHub creates an event hub
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		subs:   make(map[int]chan domain.Event),
		logger: logger,
	}
}

// Subscribe returns a receive-only event channel and a function that
// cancels the subscription and closes the channel.
func (h *EventHub) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber
func (h *EventHub) Publish(evt domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("Dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("type", string(evt.Type)),
				zap.String("job_id", evt.JobID))
		}
	}
}

// Subscribers returns the number of active subscribers
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
