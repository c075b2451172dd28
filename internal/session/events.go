package session

import (
	"sync"

	"github.com/kozaktomas/face-enroll/internal/constants"
)

// EventType names a session event.
type EventType string

const (
	EventStarted  EventType = "started"
	EventGuidance EventType = "guidance"
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventStalled  EventType = "stalled"
	EventFatal    EventType = "fatal"
	EventAborted  EventType = "aborted"
)

// Event is one presentation update.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting.
// Embed this in a struct to get AddListener, RemoveListener and SendEvent.
type EventBroadcaster struct {
	listeners []chan Event
	closed    bool
	mu        sync.RWMutex
}

// AddListener adds an event listener. Listeners added after CloseListeners
// receive an already closed channel.
func (b *EventBroadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners without blocking.
func (b *EventBroadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// CloseListeners closes and forgets every listener.
func (b *EventBroadcaster) CloseListeners() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
	b.closed = true
}
