package stream

import (
	"sync"

	"github.com/hupe1980/dialogmesh/core"
)

// Bus fans events from workflow turns out to per-session FIFO queues. It is
// safe for concurrent use; within one session the single-producer,
// single-consumer contract keeps event order stable.
type Bus struct {
	mu     sync.Mutex
	queues map[string][]core.StreamEvent
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{queues: make(map[string][]core.StreamEvent)}
}

// Publish appends an event to the session's queue, creating the queue lazily.
func (b *Bus) Publish(sessionID string, ev core.StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[sessionID] = append(b.queues[sessionID], ev)
}

// Emit is a convenience wrapper building the event from type and payload.
func (b *Bus) Emit(sessionID, eventType string, data map[string]any) {
	b.Publish(sessionID, core.NewStreamEvent(eventType, data))
}

// Complete terminates the session's stream with the done sentinel. The queue
// itself stays until the consumer drains it.
func (b *Bus) Complete(sessionID string) {
	b.Emit(sessionID, core.EventDone, nil)
}

// Drain removes and returns all queued events for the session in FIFO order.
// It returns nil when nothing is pending. If the drained batch ends with the
// done sentinel the session's queue is removed.
func (b *Bus) Drain(sessionID string) []core.StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.queues[sessionID]
	if len(events) == 0 {
		return nil
	}
	if events[len(events)-1].Type == core.EventDone {
		delete(b.queues, sessionID)
	} else {
		b.queues[sessionID] = nil
	}
	return events
}

// Remove drops the session's queue, pending events included. Used when the
// consumer disconnects without draining.
func (b *Bus) Remove(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queues, sessionID)
}

// Pending reports the number of queued events for the session.
func (b *Bus) Pending(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[sessionID])
}
