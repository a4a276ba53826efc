package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/model"
	"golang.org/x/sync/singleflight"
)

// SummaryMarker prefixes the synthetic system message that replaces a
// summarized message prefix in the in-memory view.
const SummaryMarker = "[Conversation summary]: "

// Options configure the memory manager.
type Options struct {
	// Threshold is the persisted character count above which a summarization
	// pass is scheduled after an append.
	Threshold int
	// KeepRecent is the number of trailing raw messages a summarization pass
	// leaves untouched.
	KeepRecent int
	Logger     logging.Logger
}

// Manager is the session-scoped history layer. Appends write through to the
// ChatStore synchronously; summarization runs fire-and-forget and compacts
// only the in-memory view.
type Manager struct {
	store core.ChatStore
	llm   model.Model
	opts  Options

	mu    sync.RWMutex
	views map[string][]core.Message

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewManager constructs a Manager with a 3200 character threshold keeping the
// last 2 raw messages by default.
func NewManager(store core.ChatStore, llm model.Model, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Threshold:  3200,
		KeepRecent: 2,
		Logger:     logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		store: store,
		llm:   llm,
		opts:  opts,
		views: make(map[string][]core.Message),
	}
}

// EnsureSession creates the session if absent. Existing history is preserved.
func (m *Manager) EnsureSession(sessionID string) error {
	return m.store.CreateSession(sessionID)
}

// History returns a copy of the session's in-memory view, lazily loading the
// persisted log on first access.
func (m *Manager) History(sessionID string) ([]core.Message, error) {
	if err := m.ensureLoaded(sessionID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	view := m.views[sessionID]
	out := make([]core.Message, len(view))
	copy(out, view)
	return out, nil
}

// Append writes the message through to the ChatStore, updates the in-memory
// view, and schedules a summarization pass when the persisted size crosses
// the threshold. The size check never blocks the caller.
func (m *Manager) Append(ctx context.Context, sessionID string, msg core.Message) error {
	if err := m.ensureLoaded(sessionID); err != nil {
		return err
	}
	if err := m.store.AddMessage(sessionID, msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}
	m.mu.Lock()
	m.views[sessionID] = append(m.views[sessionID], msg)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.maybeSummarize(sessionID)
	}()
	return nil
}

func (m *Manager) ensureLoaded(sessionID string) error {
	m.mu.RLock()
	_, loaded := m.views[sessionID]
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	history, err := m.store.History(sessionID, 0)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	m.mu.Lock()
	if _, loaded := m.views[sessionID]; !loaded {
		m.views[sessionID] = history
	}
	m.mu.Unlock()
	return nil
}

// maybeSummarize checks the persisted size and runs at most one summarization
// pass per session at a time. Passes for different sessions run concurrently.
func (m *Manager) maybeSummarize(sessionID string) {
	size, err := m.store.TextLength(sessionID)
	if err != nil {
		m.opts.Logger.Warn("Size check failed", "session_id", sessionID, "error", err.Error())
		return
	}
	if size <= m.opts.Threshold {
		return
	}
	_, _, _ = m.group.Do(sessionID, func() (any, error) {
		m.summarize(sessionID)
		return nil, nil
	})
}

func (m *Manager) summarize(sessionID string) {
	m.mu.RLock()
	snapshot := make([]core.Message, len(m.views[sessionID]))
	copy(snapshot, m.views[sessionID])
	m.mu.RUnlock()

	prefix := len(snapshot) - m.opts.KeepRecent
	if prefix <= 0 {
		return
	}

	var block strings.Builder
	for _, msg := range snapshot[:prefix] {
		fmt.Fprintf(&block, "%s: %s\n", msg.Role, msg.Content)
	}
	prompt := fmt.Sprintf(
		"Summarize the following conversation concisely, keeping all facts, names and decisions:\n\n%s",
		block.String(),
	)

	summary, err := model.InvokeText(context.Background(), m.llm, prompt)
	if err != nil {
		m.opts.Logger.Warn("Summarization failed, keeping raw view", "session_id", sessionID, "error", err.Error())
		return
	}

	summaryMsg := core.NewMessage(core.RoleSystem, SummaryMarker+summary)

	// Replace only the summarized prefix so messages appended mid-pass
	// survive in the view.
	m.mu.Lock()
	current := m.views[sessionID]
	if len(current) >= prefix {
		compacted := make([]core.Message, 0, 1+len(current)-prefix)
		compacted = append(compacted, summaryMsg)
		compacted = append(compacted, current[prefix:]...)
		m.views[sessionID] = compacted
	}
	m.mu.Unlock()

	m.opts.Logger.Info("Session summarized",
		"session_id", sessionID,
		"summarized_messages", prefix,
		"kept_messages", len(snapshot)-prefix,
	)
}

// Flush blocks until all scheduled summarization checks have finished.
func (m *Manager) Flush() { m.wg.Wait() }
