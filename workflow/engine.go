package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/dialogmesh/confirm"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/memory"
	"github.com/hupe1980/dialogmesh/model"
	"github.com/hupe1980/dialogmesh/retrieval"
	"github.com/hupe1980/dialogmesh/stream"
	"github.com/hupe1980/dialogmesh/tool"
)

// DefaultInstructions is the system prompt used when the caller supplies none.
const DefaultInstructions = "You are a helpful assistant. Answer clearly and concisely."

// fallbackResponse is shown when a turn hits a fatal error. A turn never ends
// with empty output.
const fallbackResponse = "I'm sorry, something went wrong while handling your request. Please try again."

// node names the workflow states.
type node string

const (
	nodeInit          node = "init"
	nodeSaveInput     node = "save_input"
	nodeToolDetect    node = "tool_detect"
	nodeToolExec      node = "tool_exec"
	nodeRetrieveDocs  node = "retrieve_docs"
	nodeRespond       node = "respond"
	nodeFinalize      node = "finalize"
	nodeErrorHandling node = "error_handling"
	nodeDone          node = "done"
)

// Config wires the engine's collaborators. All fields except Detector,
// Registry and Confirmer are required; leaving the tool trio nil disables the
// tool path entirely.
type Config struct {
	Model     model.Model
	Memory    *memory.Manager
	Retrieval *retrieval.Engine
	Registry  *tool.Registry
	Detector  *tool.Detector
	Confirmer *confirm.Coordinator
	Bus       *stream.Bus
}

// Options configure engine behavior.
type Options struct {
	// Instructions is the system prompt for the response model call.
	Instructions string
	// StreamResponses mirrors partial model output into llm_response_chunk
	// events.
	StreamResponses bool
	Logger          logging.Logger
}

// Engine executes one turn per Run call. It holds no per-turn state and is
// safe for concurrent turns of different sessions; turns of the same session
// must be serialized by the caller.
type Engine struct {
	cfg  Config
	opts Options
}

// NewEngine validates the wiring and constructs an Engine.
func NewEngine(cfg Config, optFns ...func(o *Options)) (*Engine, error) {
	if cfg.Model == nil {
		return nil, errors.New("workflow: model is required")
	}
	if cfg.Memory == nil {
		return nil, errors.New("workflow: memory manager is required")
	}
	if cfg.Retrieval == nil {
		return nil, errors.New("workflow: retrieval engine is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("workflow: event bus is required")
	}

	opts := Options{
		Instructions: DefaultInstructions,
		Logger:       logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{cfg: cfg, opts: opts}, nil
}

// Run executes one full turn and returns the final state. Failures never
// escape as errors; they are captured in the state and reflected in a safe,
// non-empty FinalResponse.
func (e *Engine) Run(ctx context.Context, sessionID, userInput string) *core.TurnState {
	state := core.NewTurnState(sessionID, userInput)
	logger := e.opts.Logger

	current := nodeInit
	for current != nodeDone {
		state.StepCount++
		logger.Debug("Workflow step", "session_id", sessionID, "node", string(current), "step", state.StepCount)
		current = e.step(ctx, current, state)
	}
	return state
}

// step runs one node with panic containment and returns the next node.
func (e *Engine) step(ctx context.Context, current node, state *core.TurnState) (next node) {
	defer func() {
		if r := recover(); r != nil {
			state.Fail(fmt.Errorf("panic in node %s: %v", current, r))
			e.opts.Logger.Error("Workflow node panic", "node", string(current), "panic", fmt.Sprintf("%v", r))
			next = nodeErrorHandling
		}
	}()

	switch current {
	case nodeInit:
		return e.runInit(state)
	case nodeSaveInput:
		return e.runSaveInput(ctx, state)
	case nodeToolDetect:
		return e.runToolDetect(ctx, state)
	case nodeToolExec:
		return e.runToolExec(ctx, state)
	case nodeRetrieveDocs:
		return e.runRetrieveDocs(ctx, state)
	case nodeRespond:
		return e.runRespond(ctx, state)
	case nodeFinalize:
		return e.runFinalize(ctx, state)
	case nodeErrorHandling:
		return e.runErrorHandling(ctx, state)
	default:
		state.Fail(fmt.Errorf("unknown workflow node %q", current))
		return nodeErrorHandling
	}
}

func (e *Engine) runInit(state *core.TurnState) node {
	if err := e.cfg.Memory.EnsureSession(state.SessionID); err != nil {
		state.Fail(fmt.Errorf("session init failed: %w", err))
		return nodeErrorHandling
	}
	e.cfg.Bus.Emit(state.SessionID, core.EventSessionStart, map[string]any{
		"session_id": state.SessionID,
	})
	return nodeSaveInput
}

func (e *Engine) runSaveInput(ctx context.Context, state *core.TurnState) node {
	msg := core.NewMessage(core.RoleUser, state.UserInput)
	if err := e.cfg.Memory.Append(ctx, state.SessionID, msg); err != nil {
		state.Fail(fmt.Errorf("failed to save user input: %w", err))
		return nodeErrorHandling
	}
	return nodeToolDetect
}

func (e *Engine) runToolDetect(ctx context.Context, state *core.TurnState) node {
	if e.cfg.Detector == nil || e.cfg.Registry == nil || e.cfg.Registry.Len() == 0 {
		return nodeRetrieveDocs
	}

	detection, err := e.cfg.Detector.Detect(ctx, state.UserInput)
	if err != nil {
		// Detection failure degrades to the retrieval path.
		e.opts.Logger.Warn("Tool detection failed", "session_id", state.SessionID, "error", err.Error())
		return nodeRetrieveDocs
	}
	state.Detection = &detection
	state.NeedsTool = detection.NeedsTool

	if detection.NeedsTool {
		e.cfg.Bus.Emit(state.SessionID, core.EventToolDetected, map[string]any{
			"tool_name":  detection.ToolName,
			"confidence": detection.Confidence,
			"reason":     detection.Reason,
		})
	}

	if state.NeedsTool && !state.Failed() {
		return nodeToolExec
	}
	return nodeRetrieveDocs
}

func (e *Engine) runToolExec(ctx context.Context, state *core.TurnState) node {
	detection := state.Detection
	execution := e.executeTool(ctx, state, detection)
	state.Execution = &execution

	if execution.Success {
		state.FinalResponse = fmt.Sprintf("Tool %s executed successfully.\n\nResult: %s",
			execution.ToolName, execution.Result)
		return nodeFinalize
	}
	// Tool failure is never fatal for the turn; recover via retrieval.
	return nodeRetrieveDocs
}

// executeTool runs the confirmation handshake and, on confirm, the tool.
func (e *Engine) executeTool(ctx context.Context, state *core.TurnState, detection *core.ToolDetectionResult) core.ToolExecutionResult {
	failed := core.ToolExecutionResult{
		ToolName:   detection.ToolName,
		Args:       detection.SuggestedArgs,
		Confidence: detection.Confidence,
	}

	if e.cfg.Confirmer == nil {
		return failed
	}
	if !e.cfg.Confirmer.MeetsFloor(detection.Confidence) {
		e.opts.Logger.Info("Tool confidence below floor, skipping execution",
			"session_id", state.SessionID,
			"tool", detection.ToolName,
			"confidence", detection.Confidence,
		)
		return failed
	}

	t, ok := e.cfg.Registry.Get(detection.ToolName)
	if !ok {
		return failed
	}

	e.cfg.Bus.Emit(state.SessionID, core.EventToolConfirmationNeeded, map[string]any{
		"tool_name":      detection.ToolName,
		"tool_schema":    t.Parameters(),
		"suggested_args": detection.SuggestedArgs,
		"confidence":     detection.Confidence,
	})

	resp, err := e.cfg.Confirmer.Await(ctx, state.SessionID)
	switch {
	case errors.Is(err, confirm.ErrTimeout):
		e.cfg.Bus.Emit(state.SessionID, core.EventToolConfirmationTimeout, map[string]any{
			"tool_name": detection.ToolName,
		})
		return failed
	case err != nil:
		e.opts.Logger.Warn("Confirmation wait failed",
			"session_id", state.SessionID, "error", err.Error())
		return failed
	case !resp.Confirmed:
		e.cfg.Bus.Emit(state.SessionID, core.EventToolConfirmationCanceled, map[string]any{
			"tool_name": detection.ToolName,
		})
		return failed
	}

	args := detection.SuggestedArgs
	if resp.ToolArgs != nil {
		args = resp.ToolArgs
	}
	failed.Args = args

	e.cfg.Bus.Emit(state.SessionID, core.EventToolExecutionStart, map[string]any{
		"tool_name": detection.ToolName,
		"args":      args,
	})

	result, err := t.Call(ctx, args)
	if err != nil {
		e.cfg.Bus.Emit(state.SessionID, core.EventToolExecutionComplete, map[string]any{
			"tool_name": detection.ToolName,
			"success":   false,
			"error":     err.Error(),
		})
		e.opts.Logger.Warn("Tool execution failed",
			"session_id", state.SessionID, "tool", detection.ToolName, "error", err.Error())
		return failed
	}

	resultText := fmt.Sprintf("%v", result)
	e.cfg.Bus.Emit(state.SessionID, core.EventToolExecutionComplete, map[string]any{
		"tool_name": detection.ToolName,
		"success":   true,
		"result":    resultText,
	})

	toolMsg := core.NewToolMessage(resultText, detection.ToolName, args)
	if err := e.cfg.Memory.Append(ctx, state.SessionID, toolMsg); err != nil {
		e.opts.Logger.Warn("Failed to persist tool message",
			"session_id", state.SessionID, "error", err.Error())
	}

	return core.ToolExecutionResult{
		Success:    true,
		ToolName:   detection.ToolName,
		Args:       args,
		Result:     resultText,
		Confidence: detection.Confidence,
	}
}

func (e *Engine) runRetrieveDocs(ctx context.Context, state *core.TurnState) node {
	result := e.cfg.Retrieval.Retrieve(ctx, state.UserInput)
	state.Retrieval = &result
	return nodeRespond
}

func (e *Engine) runFinalize(ctx context.Context, state *core.TurnState) node {
	if state.FinalResponse == "" {
		state.FinalResponse = fallbackResponse
	}
	msg := core.NewMessage(core.RoleAssistant, state.FinalResponse)
	if err := e.cfg.Memory.Append(ctx, state.SessionID, msg); err != nil {
		e.opts.Logger.Warn("Failed to persist assistant response",
			"session_id", state.SessionID, "error", err.Error())
	}
	e.cfg.Bus.Emit(state.SessionID, core.EventSessionComplete, map[string]any{
		"response": state.FinalResponse,
	})
	e.cfg.Bus.Complete(state.SessionID)
	return nodeDone
}

func (e *Engine) runErrorHandling(ctx context.Context, state *core.TurnState) node {
	e.opts.Logger.Error("Turn failed",
		"session_id", state.SessionID,
		"step", state.StepCount,
		"error", errText(state.Err),
	)
	state.FinalResponse = fallbackResponse
	msg := core.NewMessage(core.RoleAssistant, state.FinalResponse)
	if err := e.cfg.Memory.Append(ctx, state.SessionID, msg); err != nil {
		e.opts.Logger.Warn("Failed to persist fallback response",
			"session_id", state.SessionID, "error", err.Error())
	}
	e.cfg.Bus.Emit(state.SessionID, core.EventError, map[string]any{
		"error": errText(state.Err),
	})
	e.cfg.Bus.Complete(state.SessionID)
	return nodeDone
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
