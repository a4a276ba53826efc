package core

import "time"

// Stream event types emitted during a turn. The set is open: transports must
// tolerate types they do not know.
const (
	EventSessionStart             = "session_start"
	EventToolDetected             = "tool_detected"
	EventToolConfirmationNeeded   = "tool_confirmation_needed"
	EventToolExecutionStart       = "tool_execution_start"
	EventToolExecutionComplete    = "tool_execution_complete"
	EventToolConfirmationTimeout  = "tool_confirmation_timeout"
	EventToolConfirmationCanceled = "tool_confirmation_cancelled"
	EventLLMResponseStart         = "llm_response_start"
	EventLLMResponseChunk         = "llm_response_chunk"
	EventLLMResponseComplete      = "llm_response_complete"
	EventError                    = "error"
	EventSessionComplete          = "session_complete"

	// EventDone is the literal sentinel terminating a session's event stream.
	EventDone = "done"
)

// StreamEvent is one entry in a session's ordered event stream. Events are
// never reordered; a consumer sees them exactly as the workflow produced them.
type StreamEvent struct {
	Type      string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewStreamEvent constructs an event stamped with the current UTC time. A nil
// data map is replaced with an empty one so consumers can index freely.
func NewStreamEvent(eventType string, data map[string]any) StreamEvent {
	if data == nil {
		data = map[string]any{}
	}
	return StreamEvent{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
}

// ConfirmationRequest describes a pending tool execution awaiting an explicit
// confirm or decline from the outside.
type ConfirmationRequest struct {
	SessionID     string         `json:"session_id"`
	ToolName      string         `json:"tool_name"`
	Schema        map[string]any `json:"tool_schema,omitempty"`
	SuggestedArgs map[string]any `json:"suggested_args,omitempty"`
	Confidence    float64        `json:"confidence"`
}

// ConfirmationResponse resolves exactly one pending confirmation wait for the
// session. ToolArgs, when set, replaces the suggested arguments.
type ConfirmationResponse struct {
	SessionID string         `json:"session_id"`
	Confirmed bool           `json:"confirmed"`
	ToolArgs  map[string]any `json:"tool_args,omitempty"`
}
