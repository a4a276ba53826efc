package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/internal/util"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/model"
)

const planPromptTemplate = `Break the user's request into the smallest list of independent tasks. Keep it to one task when the request is simple.

Request: %s

Respond with a single JSON object:
{"tasks": ["task one", "task two"]}`

const delegatePromptTemplate = `Choose the best agent for the task and rewrite the task into a direct instruction for it.

Available agents:
%s

Accumulated context from previous tasks:
%s

Task: %s

Respond with a single JSON object:
{"agent_name": "name of the chosen agent", "task_input": "instruction for the agent"}`

const synthesizePromptTemplate = `Combine the task results into one coherent answer to the original request. Do not mention the tasks or agents.

Original request: %s

Task results:
%s`

// Options configure the orchestrator.
type Options struct {
	// MaxIterations bounds the delegation loop, self-executions included.
	MaxIterations int
	Logger        logging.Logger
}

// Orchestrator runs the plan, delegate, execute, synthesize loop over a set
// of registered agents.
type Orchestrator struct {
	llm    model.Model
	agents map[string]core.Agent
	opts   Options
}

// NewOrchestrator constructs an Orchestrator with a 25 iteration cap by
// default. Agents are registered explicitly during wiring.
func NewOrchestrator(llm model.Model, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxIterations: 25,
		Logger:        logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		llm:    llm,
		agents: make(map[string]core.Agent),
		opts:   opts,
	}
}

// Register adds a named agent. Duplicate names are rejected.
func (o *Orchestrator) Register(agent core.Agent) error {
	if _, exists := o.agents[agent.Name()]; exists {
		return fmt.Errorf("agent %q already registered", agent.Name())
	}
	o.agents[agent.Name()] = agent
	return nil
}

// AgentNames returns the registered agent names, sorted.
func (o *Orchestrator) AgentNames() []string {
	names := make([]string, 0, len(o.agents))
	for name := range o.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle answers the request through the full loop. Parse failures degrade
// instead of aborting; a model invocation failure on the planning or
// synthesis call is the only hard error.
func (o *Orchestrator) Handle(ctx context.Context, request string) (string, error) {
	tasks, err := o.plan(ctx, request)
	if err != nil {
		return "", err
	}
	o.opts.Logger.Info("Plan created", "tasks", len(tasks))

	var accumulated strings.Builder
	var results []string
	iterations := 0

	for len(tasks) > 0 {
		if iterations >= o.opts.MaxIterations {
			o.opts.Logger.Warn("Iteration cap reached, dropping remaining tasks",
				"cap", o.opts.MaxIterations, "remaining", len(tasks))
			break
		}
		iterations++

		task := tasks[0]
		tasks = tasks[1:]

		result := o.runTask(ctx, task, accumulated.String())
		results = append(results, result)

		fmt.Fprintf(&accumulated, "Task: %s\nResult: %s\n\n", task, result)
		if len(tasks) > 0 {
			fmt.Fprintf(&accumulated, "Next pending task: %s\n\n", tasks[0])
		}
	}

	return o.synthesize(ctx, request, results)
}

// plan asks the model for a task list, collapsing to a single task equal to
// the raw output when the response cannot be parsed.
func (o *Orchestrator) plan(ctx context.Context, request string) ([]string, error) {
	raw, err := model.InvokeText(ctx, o.llm, fmt.Sprintf(planPromptTemplate, request))
	if err != nil {
		return nil, fmt.Errorf("planning call failed: %w", err)
	}

	payload, ok := util.ExtractJSON(raw)
	if ok {
		if tasks := util.GetStringSlice(payload, "tasks"); len(tasks) > 0 {
			return tasks, nil
		}
	}
	o.opts.Logger.Warn("Unparseable plan, falling back to a single task")
	return []string{strings.TrimSpace(raw)}, nil
}

// runTask delegates one task, self-executing when delegation output is
// malformed or names an unknown agent. Task-level failures become error notes
// in the accumulated context rather than aborting the loop.
func (o *Orchestrator) runTask(ctx context.Context, task, accumulated string) string {
	agentName, taskInput, ok := o.delegate(ctx, task, accumulated)
	if !ok {
		return o.selfExecute(ctx, task, accumulated)
	}

	agent, registered := o.agents[agentName]
	if !registered {
		o.opts.Logger.Warn("Delegation chose unknown agent, self-executing", "agent", agentName)
		return o.selfExecute(ctx, task, accumulated)
	}

	o.opts.Logger.Info("Delegating task", "agent", agentName)
	result, err := agent.Invoke(ctx, taskInput, accumulated)
	if err != nil {
		o.opts.Logger.Warn("Agent failed", "agent", agentName, "error", err.Error())
		return fmt.Sprintf("Task could not be completed by %s: %v", agentName, err)
	}
	return result
}

func (o *Orchestrator) delegate(ctx context.Context, task, accumulated string) (agentName, taskInput string, ok bool) {
	prompt := fmt.Sprintf(delegatePromptTemplate, o.describeAgents(), orNone(accumulated), task)
	raw, err := model.InvokeText(ctx, o.llm, prompt)
	if err != nil {
		o.opts.Logger.Warn("Delegation call failed, self-executing", "error", err.Error())
		return "", "", false
	}

	payload, parsed := util.ExtractJSON(raw)
	if !parsed {
		o.opts.Logger.Warn("Unparseable delegation output, self-executing")
		return "", "", false
	}
	agentName = util.GetString(payload, "agent_name")
	taskInput = util.GetString(payload, "task_input")
	if agentName == "" {
		return "", "", false
	}
	if taskInput == "" {
		taskInput = task
	}
	return agentName, taskInput, true
}

func (o *Orchestrator) selfExecute(ctx context.Context, task, accumulated string) string {
	prompt := task
	if accumulated != "" {
		prompt = fmt.Sprintf("Context from previous tasks:\n%s\n\nTask: %s", accumulated, task)
	}
	result, err := model.InvokeText(ctx, o.llm, prompt)
	if err != nil {
		o.opts.Logger.Warn("Self-execution failed", "error", err.Error())
		return fmt.Sprintf("Task could not be completed: %v", err)
	}
	return result
}

func (o *Orchestrator) synthesize(ctx context.Context, request string, results []string) (string, error) {
	var block strings.Builder
	for i, r := range results {
		fmt.Fprintf(&block, "%d. %s\n", i+1, r)
	}
	answer, err := model.InvokeText(ctx, o.llm, fmt.Sprintf(synthesizePromptTemplate, request, block.String()))
	if err != nil {
		return "", fmt.Errorf("synthesis call failed: %w", err)
	}
	return answer, nil
}

func (o *Orchestrator) describeAgents() string {
	if len(o.agents) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, name := range o.AgentNames() {
		fmt.Fprintf(&b, "- %s: %s\n", name, o.agents[name].Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
