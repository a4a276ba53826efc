package core

import "context"

// ChatStore persists per-session message logs. Implementations must keep the
// log append-only: messages are never updated or reordered once written.
type ChatStore interface {
	// CreateSession creates the session if absent. Re-creating an existing
	// session is a no-op and must never erase stored history.
	CreateSession(id string) error
	SessionExists(id string) (bool, error)
	AddMessage(sessionID string, msg Message) error
	// History returns the session's messages in insertion order. A limit of 0
	// returns the full log.
	History(sessionID string, limit int) ([]Message, error)
	// TextLength returns the total character count of all message contents.
	TextLength(sessionID string) (int, error)
	MessageCount(sessionID string) (int, error)
	DeleteSession(sessionID string) error
	ListSessions() ([]SessionInfo, error)
}

// DocumentStore persists document metadata plus an append-only vector index.
// Ordinal i in the index corresponds, in insertion order, to the i-th
// ever-added record; soft deletion must not remove or renumber vectors.
type DocumentStore interface {
	// AddDocument stores the record, appending embedding to the vector index
	// when non-nil, and returns the generated document id.
	AddDocument(ctx context.Context, doc DocumentRecord, embedding []float32) (string, error)
	// Search ranks active documents against the query. The embedding may be
	// nil, in which case semantic search is skipped. Soft-deleted documents
	// never surface, regardless of mode.
	Search(ctx context.Context, query string, embedding []float32, mode SearchMode, limit int) ([]DocumentMatch, error)
	GetByID(id string) (*DocumentRecord, error)
	SoftDelete(id string) error
	Stats() (DocumentStats, error)
}
