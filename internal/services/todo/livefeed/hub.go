// Package livefeed pushes todo change notifications to the owner's open pages
// over WebSocket.
package livefeed

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/todolist/internal/services/todo/todos"
)

// EventTypeChanged tells a page its list is stale.
const EventTypeChanged = "todos.changed"

// EventTypeReady is sent once a connection is subscribed.
const EventTypeReady = "ready"

const defaultBuffer = 16

// Event is one frame written to a subscriber.
type Event struct {
	Type   string `json:"type"`
	TodoID string `json:"todoId,omitempty"`
	Op     string `json:"op,omitempty"`
}

type subscriber struct {
	events chan Event
}

// Hub fans change events out to subscribers grouped by owner.
type Hub struct {
	mu          sync.Mutex
	buffer      int
	closed      bool
	subscribers map[string]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		buffer:      defaultBuffer,
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers interest in ownerID's changes. The returned cancel
// func unregisters and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(ownerID string) (<-chan Event, func()) {
	ownerID = strings.TrimSpace(ownerID)
	sub := &subscriber{events: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.closed || ownerID == "" {
		h.mu.Unlock()
		close(sub.events)
		return sub.events, func() {}
	}
	owned, ok := h.subscribers[ownerID]
	if !ok {
		owned = make(map[*subscriber]struct{})
		h.subscribers[ownerID] = owned
	}
	owned[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.events, func() {
		once.Do(func() { h.remove(ownerID, sub) })
	}
}

func (h *Hub) remove(ownerID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	owned, ok := h.subscribers[ownerID]
	if !ok {
		return
	}
	if _, ok := owned[sub]; !ok {
		return
	}
	delete(owned, sub)
	close(sub.events)
	if len(owned) == 0 {
		delete(h.subscribers, ownerID)
	}
}

// Publish delivers event to ownerID's subscribers without blocking. A
// subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ownerID string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[strings.TrimSpace(ownerID)] {
		select {
		case sub.events <- event:
		default:
			log.Printf("livefeed: dropped event owner=%s type=%s", ownerID, event.Type)
		}
	}
}

// TodosChanged publishes a service mutation to the owner's subscribers.
func (h *Hub) TodosChanged(_ context.Context, change todos.Change) {
	h.Publish(change.OwnerID, Event{
		Type:   EventTypeChanged,
		TodoID: change.TodoID,
		Op:     string(change.Op),
	})
}

// Subscribers reports how many connections follow ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[strings.TrimSpace(ownerID)])
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ownerID, owned := range h.subscribers {
		for sub := range owned {
			close(sub.events)
		}
		delete(h.subscribers, ownerID)
	}
}

var _ todos.Observer = (*Hub)(nil)
