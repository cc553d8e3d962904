// Package delivery pushes verdict events to connected user sessions. It is
// a latency optimization, not a durable queue: events published while nobody
// listens are dropped, and clients poll submission history on reconnect.
package delivery

import (
	"encoding/json"
	"sync"
)

// EventSubmissionUpdated is the event name clients listen for.
const EventSubmissionUpdated = "submission-updated"

const subscriberBuffer = 16

// Event is one push message.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub fans events out to the local subscribers of a user. Every session of
// the same user receives every event; sessions never compete for them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{}
}

// Subscriber is one session's event stream.
type Subscriber struct {
	userID string
	events chan Event
}

// Events returns the stream. It is closed when the subscriber is removed.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a new session for the given user.
func (h *Hub) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{userID: userID, events: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[userID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subscribers[userID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a session and closes its stream. Safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[sub.userID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, sub.userID)
	}
	close(sub.events)
}

// Publish delivers the event to every current session of the user. Delivery
// never blocks: with no sessions the event is dropped, and a session whose
// buffer is full misses the event.
func (h *Hub) Publish(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[userID] {
		select {
		case sub.events <- event:
		default:
		}
	}
}

// SubscriberCount reports how many sessions the user currently has.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}
