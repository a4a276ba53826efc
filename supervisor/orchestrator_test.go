package supervisor

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgent records invocations and returns a canned result.
type stubAgent struct {
	name        string
	description string
	result      string
	err         error
	calls       []string
}

func (a *stubAgent) Name() string        { return a.name }
func (a *stubAgent) Description() string { return a.description }

func (a *stubAgent) Invoke(_ context.Context, query, _ string) (string, error) {
	a.calls = append(a.calls, query)
	return a.result, a.err
}

func TestSingleTaskDelegation(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", `{"tasks": ["look up the weather"]}`)
	llm.AddContains("Choose the best agent", `{"agent_name": "researcher", "task_input": "current weather in Berlin"}`)
	llm.AddContains("Combine the task results", "Berlin is sunny today.")

	agent := &stubAgent{name: "researcher", description: "Finds facts", result: "It is sunny."}
	o := NewOrchestrator(llm)
	require.NoError(t, o.Register(agent))

	answer, err := o.Handle(context.Background(), "what's the weather in Berlin?")
	require.NoError(t, err)

	// Synthesis runs even when a single task produced the only result.
	assert.Equal(t, "Berlin is sunny today.", answer)
	require.Len(t, agent.calls, 1)
	assert.Equal(t, "current weather in Berlin", agent.calls[0])
}

func TestSingleResultStillSynthesized(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", `{"tasks": ["summarize the report"]}`)
	llm.AddContains("Choose the best agent", `{"agent_name": "worker", "task_input": "summarize"}`)
	llm.AddContains("Combine the task results", "polished summary")

	agent := &stubAgent{name: "worker", description: "Does work", result: "raw summary"}
	o := NewOrchestrator(llm)
	require.NoError(t, o.Register(agent))

	answer, err := o.Handle(context.Background(), "summarize the report")
	require.NoError(t, err)

	// The raw task result never reaches the caller directly.
	assert.Equal(t, "polished summary", answer)
	assert.NotEqual(t, "raw summary", answer)
}

func TestMultiTaskSynthesis(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", `{"tasks": ["task alpha", "task beta"]}`)
	llm.AddContains("Choose the best agent", `{"agent_name": "worker", "task_input": "do it"}`)
	llm.AddContains("Combine the task results", "combined final answer")

	agent := &stubAgent{name: "worker", description: "Does work", result: "done"}
	o := NewOrchestrator(llm)
	require.NoError(t, o.Register(agent))

	answer, err := o.Handle(context.Background(), "do two things")
	require.NoError(t, err)
	assert.Equal(t, "combined final answer", answer)
	assert.Len(t, agent.calls, 2)
}

func TestMalformedPlanFallsBackToSingleTask(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", "just answer the question directly")
	llm.AddContains("Choose the best agent", `{"agent_name": "worker", "task_input": "answer it"}`)
	llm.AddContains("Combine the task results", "the answer")

	agent := &stubAgent{name: "worker", description: "Does work", result: "the raw answer"}
	o := NewOrchestrator(llm)
	require.NoError(t, o.Register(agent))

	answer, err := o.Handle(context.Background(), "question?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	require.Len(t, agent.calls, 1)
	assert.Equal(t, "answer it", agent.calls[0])
}

func TestMalformedDelegationSelfExecutes(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", `{"tasks": ["solve this"]}`)
	llm.AddContains("Choose the best agent", "I think the worker should do it")
	llm.AddResponse("solve this", "solved directly")
	llm.AddContains("Combine the task results", "solved and summarized")

	agent := &stubAgent{name: "worker", description: "Does work", result: "unused"}
	o := NewOrchestrator(llm)
	require.NoError(t, o.Register(agent))

	answer, err := o.Handle(context.Background(), "solve this please")
	require.NoError(t, err)
	assert.Equal(t, "solved and summarized", answer)
	assert.Empty(t, agent.calls)
}

func TestUnknownAgentSelfExecutes(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", `{"tasks": ["solve this"]}`)
	llm.AddContains("Choose the best agent", `{"agent_name": "ghost", "task_input": "boo"}`)
	llm.AddResponse("solve this", "handled without the ghost")
	llm.AddContains("Combine the task results", "ghost-free answer")

	o := NewOrchestrator(llm)
	require.NoError(t, o.Register(&stubAgent{name: "worker", description: "Does work"}))

	answer, err := o.Handle(context.Background(), "solve this please")
	require.NoError(t, err)
	assert.Equal(t, "ghost-free answer", answer)
}

func TestAgentFailureBecomesErrorNote(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", `{"tasks": ["risky task"]}`)
	llm.AddContains("Choose the best agent", `{"agent_name": "worker", "task_input": "try it"}`)
	llm.AddContains("Combine the task results", "the task failed, nothing to report")

	agent := &stubAgent{name: "worker", description: "Does work", err: fmt.Errorf("backend unavailable")}
	o := NewOrchestrator(llm)
	require.NoError(t, o.Register(agent))

	answer, err := o.Handle(context.Background(), "do the risky thing")
	require.NoError(t, err)
	assert.Equal(t, "the task failed, nothing to report", answer)
}

func TestIterationCap(t *testing.T) {
	llm := model.NewMockModel("supervisor")
	llm.AddContains("Break the user's request", `{"tasks": ["t1", "t2", "t3", "t4", "t5"]}`)
	llm.AddContains("Choose the best agent", `{"agent_name": "worker", "task_input": "go"}`)
	llm.AddContains("Combine the task results", "capped answer")

	agent := &stubAgent{name: "worker", description: "Does work", result: "ok"}
	o := NewOrchestrator(llm, func(opts *Options) {
		opts.MaxIterations = 2
	})
	require.NoError(t, o.Register(agent))

	answer, err := o.Handle(context.Background(), "do five things")
	require.NoError(t, err)
	assert.Equal(t, "capped answer", answer)
	assert.Len(t, agent.calls, 2, "loop must stop at the cap")
}

func TestRegisterDuplicateRejected(t *testing.T) {
	o := NewOrchestrator(model.NewMockModel("supervisor"))
	require.NoError(t, o.Register(&stubAgent{name: "worker", description: "one"}))
	assert.Error(t, o.Register(&stubAgent{name: "worker", description: "two"}))
	assert.Equal(t, []string{"worker"}, o.AgentNames())
}

var _ core.Agent = (*stubAgent)(nil)
