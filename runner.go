package dialogmesh

import (
	"context"
	"time"

	"github.com/hupe1980/dialogmesh/core"
)

// streamPollInterval is how often ChatStream's forwarder drains the bus while
// the turn is still running.
const streamPollInterval = 10 * time.Millisecond

// ChatStream runs one turn asynchronously and forwards the session's events
// to the returned channel as they are produced. The channel closes after the
// done sentinel has been forwarded or when ctx is cancelled; the final state
// arrives on the second channel.
//
// The forwarder is the single consumer of the session's event queue, so
// combining ChatStream with DrainEvents for the same turn would split events
// between the two.
func (m *DialogMesh) ChatStream(ctx context.Context, sessionID, userInput string) (<-chan core.StreamEvent, <-chan *core.TurnState) {
	events := make(chan core.StreamEvent, 32)
	result := make(chan *core.TurnState, 1)

	turnDone := make(chan struct{})
	go func() {
		defer close(turnDone)
		result <- m.engine.Run(ctx, sessionID, userInput)
	}()

	go func() {
		defer close(events)
		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()

		flush := func() bool {
			for _, ev := range m.bus.Drain(sessionID) {
				select {
				case events <- ev:
				case <-ctx.Done():
					return false
				}
				if ev.Type == core.EventDone {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				m.bus.Remove(sessionID)
				return
			case <-turnDone:
				flush()
				return
			case <-ticker.C:
				if !flush() {
					return
				}
			}
		}
	}()

	return events, result
}
