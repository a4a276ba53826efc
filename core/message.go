package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message.
type Role string

// Conversation roles persisted in the chat log.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single entry in a session's ordered message log. Messages are
// immutable once persisted; the log is append-only.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolArgs  map[string]any `json:"tool_args,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessage constructs a message stamped with the current UTC time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// NewToolMessage constructs a tool-authored message carrying the tool's name
// and the arguments it was invoked with.
func NewToolMessage(content, toolName string, toolArgs map[string]any) Message {
	m := NewMessage(RoleTool, content)
	m.ToolName = toolName
	m.ToolArgs = toolArgs
	return m
}

// SessionInfo summarizes a persisted session for listing purposes.
type SessionInfo struct {
	ID           string    `json:"id"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
	MessageCount int       `json:"message_count"`
}

// NewID generates a new unique identifier for sessions, documents and events.
func NewID() string { return uuid.NewString() }
