package core

// ToolDetectionResult is the parsed outcome of asking the model whether the
// user's input calls for a tool.
type ToolDetectionResult struct {
	NeedsTool     bool           `json:"needs_tool"`
	ToolName      string         `json:"tool_name,omitempty"`
	Confidence    float64        `json:"confidence"`
	Reason        string         `json:"reason,omitempty"`
	SuggestedArgs map[string]any `json:"suggested_args,omitempty"`
}

// ToolExecutionResult records the outcome of a confirmed tool invocation.
type ToolExecutionResult struct {
	Success    bool           `json:"success"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args,omitempty"`
	Result     string         `json:"result"`
	Confidence float64        `json:"confidence"`
}

// RetrievalResult aggregates the hybrid-search outcome for one query together
// with the pre-rendered context and citation blocks handed to the model.
type RetrievalResult struct {
	HasRelevantDocs bool
	Documents       []DocumentMatch
	Context         string
	References      string
	Query           string
}

// TurnState is the mutable record owned by exactly one workflow execution.
// Nodes receive it, mutate it and hand it to the next node; it is never
// shared across turns.
type TurnState struct {
	SessionID string
	UserInput string
	Messages  []Message

	NeedsTool bool
	Detection *ToolDetectionResult
	Execution *ToolExecutionResult
	Retrieval *RetrievalResult

	FinalResponse string
	StepCount     int
	Err           error
}

// NewTurnState initializes the state for one turn of a session.
func NewTurnState(sessionID, userInput string) *TurnState {
	return &TurnState{SessionID: sessionID, UserInput: userInput}
}

// Failed reports whether a node has recorded a fatal error for this turn.
func (s *TurnState) Failed() bool { return s.Err != nil }

// Fail records err as the turn's fatal error. The first error wins; later
// calls with a non-nil error are ignored so the root cause is preserved.
func (s *TurnState) Fail(err error) {
	if s.Err == nil {
		s.Err = err
	}
}
