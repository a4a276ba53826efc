package chatstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable ChatStore backed by a SQLite database file. One
// row per message keeps the log append-only; session rows track creation and
// last-update timestamps for listing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_name TEXT,
		tool_args TEXT,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES chat_sessions(session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateSession creates the session row if absent; existing history is preserved.
func (s *SQLiteStore) CreateSession(id string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO chat_sessions (session_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		id, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// SessionExists reports whether a session row exists.
func (s *SQLiteStore) SessionExists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM chat_sessions WHERE session_id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query session: %w", err)
	}
	return true, nil
}

// AddMessage appends a message to the session log, creating the session lazily.
func (s *SQLiteStore) AddMessage(sessionID string, msg core.Message) error {
	if err := s.CreateSession(sessionID); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	var toolArgs any
	if msg.ToolArgs != nil {
		raw, err := json.Marshal(msg.ToolArgs)
		if err != nil {
			return fmt.Errorf("failed to encode tool args: %w", err)
		}
		toolArgs = string(raw)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO chat_messages (session_id, role, content, tool_name, tool_args, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(msg.Role), msg.Content, nullIfEmpty(msg.ToolName), toolArgs, msg.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE chat_sessions SET updated_at = ? WHERE session_id = ?`,
		time.Now().UTC(), sessionID,
	); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return tx.Commit()
}

// History returns the session's messages in insertion order. A limit of 0
// returns the full log; otherwise the most recent limit messages.
func (s *SQLiteStore) History(sessionID string, limit int) ([]core.Message, error) {
	query := `SELECT role, content, tool_name, tool_args, timestamp
	          FROM chat_messages WHERE session_id = ? ORDER BY id`
	args := []any{sessionID}
	if limit > 0 {
		// Select the newest rows, then restore insertion order.
		query = `SELECT role, content, tool_name, tool_args, timestamp FROM (
		           SELECT id, role, content, tool_name, tool_args, timestamp
		           FROM chat_messages WHERE session_id = ? ORDER BY id DESC LIMIT ?
		         ) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var (
			role, content      string
			toolName, toolArgs sql.NullString
			ts                 time.Time
		)
		if err := rows.Scan(&role, &content, &toolName, &toolArgs, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg := core.Message{Role: core.Role(role), Content: content, Timestamp: ts}
		if toolName.Valid {
			msg.ToolName = toolName.String
		}
		if toolArgs.Valid && toolArgs.String != "" {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(toolArgs.String), &parsed); err == nil {
				msg.ToolArgs = parsed
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// TextLength returns the total character count across all message contents.
func (s *SQLiteStore) TextLength(sessionID string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(
		`SELECT SUM(LENGTH(content)) FROM chat_messages WHERE session_id = ?`, sessionID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum content length: %w", err)
	}
	return int(total.Int64), nil
}

// MessageCount returns the number of messages in the session log.
func (s *SQLiteStore) MessageCount(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chat_messages WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// DeleteSession removes the session row and its messages atomically.
func (s *SQLiteStore) DeleteSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM chat_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("session %q not found", sessionID)
	}
	return tx.Commit()
}

// ListSessions returns summaries of all sessions sorted by last update,
// newest first.
func (s *SQLiteStore) ListSessions() ([]core.SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, s.created_at, s.updated_at, COUNT(m.id)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []core.SessionInfo
	for rows.Next() {
		var info core.SessionInfo
		if err := rows.Scan(&info.ID, &info.Created, &info.Updated, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ core.ChatStore = (*SQLiteStore)(nil)
