package ws

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Subscription is a handle on a group's change stream. Events arrive on C;
// the channel is closed on Unsubscribe.
type Subscription struct {
	GroupID int
	C       chan models.GroupEvent
	id      string
}

// Hub fans typed group events out to subscribers. The write path publishes
// after every successful mutation, so every subscriber observes the echoed
// event, the sender's own session included.
type Hub struct {
	mu     sync.RWMutex
	groups map[int]map[string]*Subscription
	log    *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		groups: make(map[int]map[string]*Subscription),
		log:    log,
	}
}

// Subscribe registers a new subscription on the group's stream.
func (h *Hub) Subscribe(groupID int) *Subscription {
	sub := &Subscription{
		GroupID: groupID,
		C:       make(chan models.GroupEvent, 32),
		id:      uuid.NewString(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[groupID]; !ok {
		h.groups[groupID] = make(map[string]*Subscription)
	}
	h.groups[groupID][sub.id] = sub
	observability.IncWSActive("group")
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.groups[sub.GroupID]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.groups, sub.GroupID)
	}
	close(sub.C)
	observability.DecWSActive("group")
}

// Publish delivers an event to every subscriber of its group. Slow
// subscribers drop the event rather than blocking the write path.
//
// The fan-out runs under the read lock: Unsubscribe closes channels under
// the write lock, so a send can never hit a closed channel. Sends never
// block, which bounds the hold time.
func (h *Hub) Publish(event models.GroupEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.groups[event.GroupID] {
		select {
		case sub.C <- event:
			observability.IncWSEvent("group", string(event.Type))
		default:
			h.log.Warn("event dropped for slow subscriber",
				zap.Int("group_id", event.GroupID),
				zap.String("event", string(event.Type)))
			observability.IncWSEvent("group", "dropped")
		}
	}
}

// SubscriberCount reports the number of open subscriptions for a group.
func (h *Hub) SubscriberCount(groupID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}
