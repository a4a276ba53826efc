package tool

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/dialogmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionToolCall(t *testing.T) {
	add := NewAddTool()

	result, err := add.Call(context.Background(), map[string]any{"a": float64(3), "b": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, "8", result)
}

func TestFunctionToolValidation(t *testing.T) {
	add := NewAddTool()

	_, err := add.Call(context.Background(), map[string]any{"a": float64(3)})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionToolExecutionError(t *testing.T) {
	failing := NewFunctionTool(
		"boom",
		"Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, fmt.Errorf("out of fuel")
		},
	)

	_, err := failing.Call(context.Background(), map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "out of fuel")
}

func TestMultiplyTool(t *testing.T) {
	mul := NewMultiplyTool()

	result, err := mul.Call(context.Background(), map[string]any{"a": float64(4), "b": float64(2.5)})
	require.NoError(t, err)
	assert.Equal(t, "10", result)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewAddTool()))
	require.NoError(t, reg.Register(NewMultiplyTool()))

	assert.Error(t, reg.Register(NewAddTool()), "duplicate names must be rejected")
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"add", "multiply"}, reg.Names())

	got, ok := reg.Get("add")
	require.True(t, ok)
	assert.Equal(t, "add", got.Name())

	summary := reg.SchemaSummary()
	assert.Contains(t, summary, "add: Add two numbers")
	assert.Contains(t, summary, "multiply: Multiply two numbers")
	assert.Contains(t, summary, `"required"`)
}

func newDetector(t *testing.T, llm model.Model) *Detector {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewAddTool()))
	require.NoError(t, reg.Register(NewMultiplyTool()))
	return NewDetector(llm, reg)
}

func TestDetectorPositive(t *testing.T) {
	llm := model.NewMockModel("detector")
	llm.AddContains("what is 3 plus 5",
		`{"needs_tool": true, "tool_name": "add", "confidence": 0.92, "reason": "arithmetic request", "suggested_args": {"a": 3, "b": 5}}`)

	result, err := newDetector(t, llm).Detect(context.Background(), "what is 3 plus 5")
	require.NoError(t, err)
	assert.True(t, result.NeedsTool)
	assert.Equal(t, "add", result.ToolName)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	assert.Equal(t, float64(3), result.SuggestedArgs["a"])
}

func TestDetectorNegative(t *testing.T) {
	llm := model.NewMockModel("detector")
	llm.AddContains("tell me a story",
		`{"needs_tool": false, "tool_name": "", "confidence": 0.1, "reason": "conversational", "suggested_args": {}}`)

	result, err := newDetector(t, llm).Detect(context.Background(), "tell me a story")
	require.NoError(t, err)
	assert.False(t, result.NeedsTool)
}

func TestDetectorMalformedOutputDegrades(t *testing.T) {
	llm := model.NewMockModel("detector")
	llm.AddContains("User message", "sure, I can help with that!")

	result, err := newDetector(t, llm).Detect(context.Background(), "something")
	require.NoError(t, err)
	assert.False(t, result.NeedsTool)
}

func TestDetectorUnknownToolDegrades(t *testing.T) {
	llm := model.NewMockModel("detector")
	llm.AddContains("User message",
		`{"needs_tool": true, "tool_name": "launch_rocket", "confidence": 0.99, "reason": "", "suggested_args": {}}`)

	result, err := newDetector(t, llm).Detect(context.Background(), "something")
	require.NoError(t, err)
	assert.False(t, result.NeedsTool)
}

func TestDetectorFencedJSON(t *testing.T) {
	llm := model.NewMockModel("detector")
	llm.AddContains("User message",
		"```json\n{\"needs_tool\": true, \"tool_name\": \"multiply\", \"confidence\": 0.8, \"reason\": \"math\", \"suggested_args\": {\"a\": 2, \"b\": 6}}\n```")

	result, err := newDetector(t, llm).Detect(context.Background(), "two times six")
	require.NoError(t, err)
	assert.True(t, result.NeedsTool)
	assert.Equal(t, "multiply", result.ToolName)
}
