package chatstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/dialogmesh/core"
)

// InMemoryStore is a volatile ChatStore implementation storing sessions in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Returned message slices are copies to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
}

type memSession struct {
	created  time.Time
	updated  time.Time
	messages []core.Message
}

// NewInMemoryStore constructs an empty in‑memory chat store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*memSession)}
}

// CreateSession creates the session if absent; existing history is preserved.
func (s *InMemoryStore) CreateSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil
	}
	now := time.Now().UTC()
	s.sessions[id] = &memSession{created: now, updated: now}
	return nil
}

// SessionExists reports whether the session has been created.
func (s *InMemoryStore) SessionExists(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok, nil
}

// AddMessage appends a message to the session log, creating the session lazily.
func (s *InMemoryStore) AddMessage(sessionID string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		now := time.Now().UTC()
		sess = &memSession{created: now}
		s.sessions[sessionID] = sess
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	sess.messages = append(sess.messages, msg)
	sess.updated = time.Now().UTC()
	return nil
}

// History returns the session's messages in insertion order. A limit of 0
// returns the full log; otherwise the most recent limit messages.
func (s *InMemoryStore) History(sessionID string, limit int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	msgs := sess.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// TextLength returns the total character count across all message contents.
func (s *InMemoryStore) TextLength(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	var total int
	for _, m := range sess.messages {
		total += len([]rune(m.Content))
	}
	return total, nil
}

// MessageCount returns the number of messages in the session log.
func (s *InMemoryStore) MessageCount(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	return len(sess.messages), nil
}

// DeleteSession removes the session and its log.
func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session %q not found", sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

// ListSessions returns summaries of all sessions sorted by last update,
// newest first.
func (s *InMemoryStore) ListSessions() ([]core.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SessionInfo, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, core.SessionInfo{
			ID:           id,
			Created:      sess.created,
			Updated:      sess.updated,
			MessageCount: len(sess.messages),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })
	return out, nil
}

var _ core.ChatStore = (*InMemoryStore)(nil)
