package confirm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

var (
	// ErrPending rejects a second confirmation request for a session whose
	// first request is still unresolved.
	ErrPending = errors.New("confirmation already pending for session")

	// ErrNoPending is returned by Resolve when no wait is registered for the
	// session.
	ErrNoPending = errors.New("no pending confirmation for session")

	// ErrTimeout reports that no confirmation arrived within the deadline.
	// Callers treat it as a decline.
	ErrTimeout = errors.New("confirmation timed out")
)

// Options configure the coordinator.
type Options struct {
	// ConfidenceFloor is the minimum detection confidence required to attempt
	// tool execution at all.
	ConfidenceFloor float64
	// Timeout bounds the confirmation wait.
	Timeout time.Duration
	Logger  logging.Logger
}

// Coordinator runs the per-session confirmation rendezvous.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]chan core.ConfirmationResponse
	opts    Options
}

// NewCoordinator constructs a Coordinator with a 0.7 confidence floor and a
// 60 second timeout by default.
func NewCoordinator(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		ConfidenceFloor: 0.7,
		Timeout:         60 * time.Second,
		Logger:          logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{
		pending: make(map[string]chan core.ConfirmationResponse),
		opts:    opts,
	}
}

// ConfidenceFloor returns the configured minimum detection confidence.
func (c *Coordinator) ConfidenceFloor() float64 { return c.opts.ConfidenceFloor }

// MeetsFloor reports whether a detection confidence clears the floor.
func (c *Coordinator) MeetsFloor(confidence float64) bool {
	return confidence >= c.opts.ConfidenceFloor
}

// Await registers the session's confirmation slot and blocks until Resolve is
// called, the timeout expires (ErrTimeout), or ctx is cancelled. A session
// with an unresolved wait gets ErrPending immediately. The slot is released
// on every outcome.
func (c *Coordinator) Await(ctx context.Context, sessionID string) (core.ConfirmationResponse, error) {
	c.mu.Lock()
	if _, exists := c.pending[sessionID]; exists {
		c.mu.Unlock()
		return core.ConfirmationResponse{}, ErrPending
	}
	ch := make(chan core.ConfirmationResponse, 1)
	c.pending[sessionID] = ch
	c.mu.Unlock()

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		if released := c.release(sessionID); !released {
			// Resolve won the race; its response is already in flight.
			return <-ch, nil
		}
		c.opts.Logger.Warn("Confirmation timed out", "session_id", sessionID)
		return core.ConfirmationResponse{SessionID: sessionID, Confirmed: false}, ErrTimeout
	case <-ctx.Done():
		if released := c.release(sessionID); !released {
			return <-ch, nil
		}
		return core.ConfirmationResponse{}, ctx.Err()
	}
}

// Resolve delivers a confirmation response to the session's pending wait.
// Exactly one wait is resolved per call.
func (c *Coordinator) Resolve(resp core.ConfirmationResponse) error {
	c.mu.Lock()
	ch, ok := c.pending[resp.SessionID]
	if !ok {
		c.mu.Unlock()
		return ErrNoPending
	}
	delete(c.pending, resp.SessionID)
	c.mu.Unlock()

	ch <- resp
	return nil
}

// HasPending reports whether the session has an unresolved confirmation.
func (c *Coordinator) HasPending(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[sessionID]
	return ok
}

// release removes the session's slot if still registered, reporting whether
// this caller performed the removal.
func (c *Coordinator) release(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[sessionID]; !ok {
		return false
	}
	delete(c.pending, sessionID)
	return true
}
