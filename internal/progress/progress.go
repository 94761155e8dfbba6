// Package progress provides an in-memory fan-out of pipeline stage events
// keyed by opaque session ids.
//
// Publishing to an unknown session is a silent no-op so the pipeline never
// blocks on an absent listener. A session ends with exactly one "done"
// event, after which its channels are closed and the session removed.
package progress

import (
	"sync"
	"time"
)

// EventType discriminates progress events.
type EventType string

const (
	// TypeProgress marks an intermediate stage event.
	TypeProgress EventType = "progress"
	// TypeDone marks the terminal event for a session.
	TypeDone EventType = "done"
)

// Event is one stage-reached notification.
type Event struct {
	Type      EventType `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans events out to per-session subscribers.
type Hub struct {
	mu       sync.Mutex
	sessions map[string][]chan Event
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: map[string][]chan Event{}}
}

// Subscribe registers a listener for a session and returns its channel plus
// a cancel function. Subscribing creates the session if needed.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.sessions[sessionID] = append(h.sessions[sessionID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		listeners := h.sessions[sessionID]
		for i, candidate := range listeners {
			if candidate == ch {
				h.sessions[sessionID] = append(listeners[:i], listeners[i+1:]...)
				close(ch)
				break
			}
		}
		if len(h.sessions[sessionID]) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	return ch, cancel
}

// Publish emits a progress event to a session. Unknown sessions and slow
// listeners are ignored; the publisher never blocks.
func (h *Hub) Publish(sessionID, stage, message string) {
	h.emit(sessionID, Event{
		Type:      TypeProgress,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Done emits the terminal event and removes the session.
func (h *Hub) Done(sessionID, message string) {
	h.emit(sessionID, Event{
		Type:      TypeDone,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.sessions[sessionID] {
		close(ch)
	}
	delete(h.sessions, sessionID)
}

// emit delivers under the lock so a concurrent cancel or Done cannot close
// a channel mid-send. Sends are non-blocking, so holding the lock is cheap.
func (h *Hub) emit(sessionID string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.sessions[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
