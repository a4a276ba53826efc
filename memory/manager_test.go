package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/hupe1980/dialogmesh/chatstore"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, threshold int) (*Manager, *chatstore.InMemoryStore) {
	t.Helper()
	store := chatstore.NewInMemoryStore()
	llm := model.NewMockModel("summarizer")
	llm.AddContains("Summarize the following conversation", "users discussed project planning")
	mgr := NewManager(store, llm, func(o *Options) {
		o.Threshold = threshold
	})
	return mgr, store
}

func TestAppendWritesThrough(t *testing.T) {
	mgr, store := newTestManager(t, 3200)

	require.NoError(t, mgr.EnsureSession("s1"))
	require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(core.RoleUser, "hi")))
	mgr.Flush()

	history, err := store.History("s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)

	view, err := mgr.History("s1")
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "hi", view[0].Content)
}

func TestEnsureSessionIdempotent(t *testing.T) {
	mgr, store := newTestManager(t, 3200)

	require.NoError(t, mgr.EnsureSession("s1"))
	require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(core.RoleUser, "hello")))
	mgr.Flush()
	require.NoError(t, mgr.EnsureSession("s1"))

	count, err := store.MessageCount("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLazyLoadExistingHistory(t *testing.T) {
	store := chatstore.NewInMemoryStore()
	require.NoError(t, store.AddMessage("s1", core.NewMessage(core.RoleUser, "earlier")))
	require.NoError(t, store.AddMessage("s1", core.NewMessage(core.RoleAssistant, "reply")))

	mgr := NewManager(store, model.NewMockModel("summarizer"))

	view, err := mgr.History("s1")
	require.NoError(t, err)
	require.Len(t, view, 2)
	assert.Equal(t, "earlier", view[0].Content)
}

func TestSummarizationCompactsViewOnly(t *testing.T) {
	mgr, store := newTestManager(t, 40)

	msgs := []string{
		"tell me about the project timeline please",
		"the project ships in Q3 after the beta",
		"who owns the rollout plan",
		"the platform team owns the rollout plan",
	}
	for i, content := range msgs {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(role, content)))
	}
	mgr.Flush()

	// Persisted log keeps full raw history.
	count, err := store.MessageCount("s1")
	require.NoError(t, err)
	assert.Equal(t, len(msgs), count)

	// View is [summary] + last 2 raw messages.
	view, err := mgr.History("s1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(view), 3)
	assert.Equal(t, core.RoleSystem, view[0].Role)
	assert.True(t, strings.HasPrefix(view[0].Content, SummaryMarker))
	assert.Equal(t, msgs[len(msgs)-2], view[len(view)-2].Content)
	assert.Equal(t, msgs[len(msgs)-1], view[len(view)-1].Content)
}

func TestNoSummarizationBelowThreshold(t *testing.T) {
	mgr, _ := newTestManager(t, 3200)

	require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(core.RoleUser, "short")))
	require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(core.RoleAssistant, "also short")))
	mgr.Flush()

	view, err := mgr.History("s1")
	require.NoError(t, err)
	require.Len(t, view, 2)
	for _, msg := range view {
		assert.NotEqual(t, core.RoleSystem, msg.Role)
	}
}

func TestSummarizationFailureKeepsRawView(t *testing.T) {
	store := chatstore.NewInMemoryStore()
	llm := model.NewMockModel("summarizer")
	mgr := NewManager(store, failingModel{llm}, func(o *Options) {
		o.Threshold = 10
	})

	require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(core.RoleUser, "message one of several")))
	require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(core.RoleAssistant, "message two of several")))
	require.NoError(t, mgr.Append(context.Background(), "s1", core.NewMessage(core.RoleUser, "message three of several")))
	mgr.Flush()

	view, err := mgr.History("s1")
	require.NoError(t, err)
	assert.Len(t, view, 3)
}

// failingModel wraps a model and fails every generation.
type failingModel struct {
	inner model.Model
}

func (f failingModel) Generate(_ context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- assert.AnError
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (f failingModel) Info() model.Info { return f.inner.Info() }
