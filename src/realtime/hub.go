package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/assafrot/api-keys-app/src/logging"
	"github.com/assafrot/api-keys-app/src/models"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind loses events rather than stalling the publisher.
const subscriberBuffer = 16

type subscriber struct {
	ownerID string
	ch      chan models.ChangeEvent
}

// Hub fans change events out to subscribers
type Hub struct {
	logger zerolog.Logger
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		logger: logging.NewLogger("realtime"),
		subs:   make(map[uint64]*subscriber),
	}
}

// Subscribe registers a subscriber for ownerID. INSERT and UPDATE events are
// filtered to that owner at the source; DELETE events are delivered to every
// subscriber and must be filtered by the receiver against Old.OwnerID.
// An empty ownerID receives everything. The channel is closed when ctx ends
// or the hub is closed.
func (h *Hub) Subscribe(ctx context.Context, ownerID string) <-chan models.ChangeEvent {
	ch := make(chan models.ChangeEvent, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{ownerID: ownerID, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(id)
	}()

	return ch
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Publish delivers ev to every matching subscriber without blocking
func (h *Hub) Publish(ev models.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sourceFilter(ev, sub.ownerID) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn().
				Str("owner_id", sub.ownerID).
				Str("type", string(ev.Type)).
				Msg("subscriber channel full, dropping change event")
		}
	}
}

// Subscribers returns the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel and rejects new subscriptions
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// sourceFilter is the store-side filter: inserts and updates by owner, deletes unfiltered
func sourceFilter(ev models.ChangeEvent, ownerID string) bool {
	if ownerID == "" || ev.Type == models.ChangeDelete {
		return true
	}
	return ev.New != nil && ev.New.OwnerID == ownerID
}
