package supervisor

import (
	"context"
	"fmt"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/workflow"
)

// WorkflowAgent exposes a workflow.Engine as a supervisor agent. Each invoke
// runs one full turn in its own session so delegated sub-queries never mix
// histories.
type WorkflowAgent struct {
	name        string
	description string
	engine      *workflow.Engine
}

// NewWorkflowAgent wraps the engine under the given agent identity.
func NewWorkflowAgent(name, description string, engine *workflow.Engine) *WorkflowAgent {
	return &WorkflowAgent{name: name, description: description, engine: engine}
}

// Name implements core.Agent.
func (a *WorkflowAgent) Name() string { return a.name }

// Description implements core.Agent.
func (a *WorkflowAgent) Description() string { return a.description }

// Invoke runs one turn. Accumulated context rides along as part of the user
// input so the turn sees what earlier tasks produced.
func (a *WorkflowAgent) Invoke(ctx context.Context, query, chatContext string) (string, error) {
	input := query
	if chatContext != "" {
		input = fmt.Sprintf("Context:\n%s\n\n%s", chatContext, query)
	}
	state := a.engine.Run(ctx, core.NewID(), input)
	if state.FinalResponse == "" {
		return "", fmt.Errorf("agent %s produced no response", a.name)
	}
	return state.FinalResponse, nil
}

var _ core.Agent = (*WorkflowAgent)(nil)
