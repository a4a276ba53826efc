package confirm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitResolvedConfirm(t *testing.T) {
	c := NewCoordinator()

	var wg sync.WaitGroup
	wg.Add(1)
	var resp core.ConfirmationResponse
	var err error
	go func() {
		defer wg.Done()
		resp, err = c.Await(context.Background(), "s1")
	}()

	require.Eventually(t, func() bool { return c.HasPending("s1") }, time.Second, time.Millisecond)
	require.NoError(t, c.Resolve(core.ConfirmationResponse{
		SessionID: "s1",
		Confirmed: true,
		ToolArgs:  map[string]any{"a": 1},
	}))
	wg.Wait()

	require.NoError(t, err)
	assert.True(t, resp.Confirmed)
	assert.Equal(t, 1, resp.ToolArgs["a"])
	assert.False(t, c.HasPending("s1"))
}

func TestAwaitTimeoutTreatedAsDeclined(t *testing.T) {
	c := NewCoordinator(func(o *Options) {
		o.Timeout = 20 * time.Millisecond
	})

	start := time.Now()
	resp, err := c.Await(context.Background(), "s1")

	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, resp.Confirmed)
	assert.Less(t, time.Since(start), time.Second, "wait must resolve, never hang")
	assert.False(t, c.HasPending("s1"), "slot must be released on timeout")
}

func TestSecondAwaitRejected(t *testing.T) {
	c := NewCoordinator()

	go func() { _, _ = c.Await(context.Background(), "s1") }()
	require.Eventually(t, func() bool { return c.HasPending("s1") }, time.Second, time.Millisecond)

	_, err := c.Await(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrPending)

	// Unblock the first waiter.
	require.NoError(t, c.Resolve(core.ConfirmationResponse{SessionID: "s1"}))
}

func TestResolveWithoutPending(t *testing.T) {
	c := NewCoordinator()
	err := c.Resolve(core.ConfirmationResponse{SessionID: "nobody"})
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestAwaitContextCancellation(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Await(ctx, "s1")
		done <- err
	}()
	require.Eventually(t, func() bool { return c.HasPending("s1") }, time.Second, time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.HasPending("s1"))
}

func TestSessionsIndependent(t *testing.T) {
	c := NewCoordinator()

	results := make(chan string, 2)
	for _, id := range []string{"a", "b"} {
		go func(sessionID string) {
			resp, err := c.Await(context.Background(), sessionID)
			if err == nil && resp.Confirmed {
				results <- sessionID
			}
		}(id)
	}
	require.Eventually(t, func() bool { return c.HasPending("a") && c.HasPending("b") }, time.Second, time.Millisecond)

	require.NoError(t, c.Resolve(core.ConfirmationResponse{SessionID: "b", Confirmed: true}))
	require.NoError(t, c.Resolve(core.ConfirmationResponse{SessionID: "a", Confirmed: true}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		got[<-results] = true
	}
	assert.True(t, got["a"] && got["b"])
}

func TestMeetsFloor(t *testing.T) {
	c := NewCoordinator()
	assert.True(t, c.MeetsFloor(0.9))
	assert.True(t, c.MeetsFloor(0.7))
	assert.False(t, c.MeetsFloor(0.69))
}
