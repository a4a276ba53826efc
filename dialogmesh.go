// Package dialogmesh provides a high-level façade over the per-turn workflow
// engine and its collaborators (chat history, document retrieval, tool
// confirmation, event streaming) enabling rapid construction of conversational
// agents. Most applications interact with this package by:
//  1. Creating a DialogMesh via New() (optionally overriding default in-memory services)
//  2. Registering tools and seeding documents
//  3. Running turns synchronously (Chat) or with live events (ChatStream)
//
// The façade delegates turn execution to workflow.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply durable store
// implementations and a structured logger.
package dialogmesh

import (
	"context"
	"time"

	"github.com/hupe1980/dialogmesh/chatstore"
	"github.com/hupe1980/dialogmesh/confirm"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/docstore"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/memory"
	"github.com/hupe1980/dialogmesh/model"
	"github.com/hupe1980/dialogmesh/retrieval"
	"github.com/hupe1980/dialogmesh/stream"
	"github.com/hupe1980/dialogmesh/supervisor"
	"github.com/hupe1980/dialogmesh/tool"
	"github.com/hupe1980/dialogmesh/workflow"
)

// Options configures the DialogMesh instance.
type Options struct {
	// Embedder enables the semantic retrieval tier; nil degrades search to
	// the text tiers.
	Embedder model.Embedder

	// Stores (default to in-memory implementations if not provided).
	ChatStore     core.ChatStore
	DocumentStore core.DocumentStore

	// Instructions is the system prompt for response generation.
	Instructions string
	// StreamResponses mirrors partial model output into chunk events.
	StreamResponses bool

	// SummaryThreshold is the persisted character count triggering history
	// summarization.
	SummaryThreshold int

	// ConfirmationFloor is the minimum tool-detection confidence.
	ConfirmationFloor float64
	// ConfirmationTimeout bounds the tool-confirmation wait.
	ConfirmationTimeout time.Duration

	// TopK caps retrieved documents per query.
	TopK int
	// MinSimilarity drops matches below the floor; zero disables it.
	MinSimilarity float64

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// DialogMesh is the high-level façade aggregating the workflow engine and its
// services.
type DialogMesh struct {
	opts      Options
	engine    *workflow.Engine
	memory    *memory.Manager
	registry  *tool.Registry
	confirmer *confirm.Coordinator
	bus       *stream.Bus
	docs      core.DocumentStore
	embedder  model.Embedder
	llm       model.Model
}

// New creates a DialogMesh around the given model with optional overrides.
// Any unset service is initialized with an in-memory implementation.
func New(llm model.Model, optFns ...func(o *Options)) (*DialogMesh, error) {
	opts := Options{
		ChatStore:           chatstore.NewInMemoryStore(),
		Instructions:        workflow.DefaultInstructions,
		SummaryThreshold:    3200,
		ConfirmationFloor:   0.7,
		ConfirmationTimeout: 60 * time.Second,
		TopK:                5,
		Logger:              logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.DocumentStore == nil {
		store, err := docMemoryStore()
		if err != nil {
			return nil, err
		}
		opts.DocumentStore = store
	}

	bus := stream.NewBus()
	registry := tool.NewRegistry()
	confirmer := confirm.NewCoordinator(func(o *confirm.Options) {
		o.ConfidenceFloor = opts.ConfirmationFloor
		o.Timeout = opts.ConfirmationTimeout
		o.Logger = opts.Logger
	})
	mem := memory.NewManager(opts.ChatStore, llm, func(o *memory.Options) {
		o.Threshold = opts.SummaryThreshold
		o.Logger = opts.Logger
	})
	retriever := retrieval.NewEngine(opts.DocumentStore, opts.Embedder, func(o *retrieval.Options) {
		o.TopK = opts.TopK
		o.MinSimilarity = opts.MinSimilarity
		o.Logger = opts.Logger
	})

	engine, err := workflow.NewEngine(workflow.Config{
		Model:     llm,
		Memory:    mem,
		Retrieval: retriever,
		Registry:  registry,
		Detector:  tool.NewDetector(llm, registry, func(o *tool.DetectorOptions) { o.Logger = opts.Logger }),
		Confirmer: confirmer,
		Bus:       bus,
	}, func(o *workflow.Options) {
		o.Instructions = opts.Instructions
		o.StreamResponses = opts.StreamResponses
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &DialogMesh{
		opts:      opts,
		engine:    engine,
		memory:    mem,
		registry:  registry,
		confirmer: confirmer,
		bus:       bus,
		docs:      opts.DocumentStore,
		embedder:  opts.Embedder,
		llm:       llm,
	}, nil
}

// docMemoryStore builds the default process-local document store.
func docMemoryStore() (core.DocumentStore, error) {
	return docstore.NewStore(":memory:")
}

// RegisterTool adds a tool to the workflow's registry.
func (m *DialogMesh) RegisterTool(t tool.Tool) error { return m.registry.Register(t) }

// Chat runs one synchronous turn and returns the final state. The session's
// queued events can be collected afterwards with DrainEvents.
func (m *DialogMesh) Chat(ctx context.Context, sessionID, userInput string) *core.TurnState {
	return m.engine.Run(ctx, sessionID, userInput)
}

// Confirm resolves a pending tool confirmation for a session.
func (m *DialogMesh) Confirm(resp core.ConfirmationResponse) error {
	return m.confirmer.Resolve(resp)
}

// DrainEvents returns and removes all queued events for the session.
func (m *DialogMesh) DrainEvents(sessionID string) []core.StreamEvent {
	return m.bus.Drain(sessionID)
}

// History returns the session's in-memory message view.
func (m *DialogMesh) History(sessionID string) ([]core.Message, error) {
	return m.memory.History(sessionID)
}

// Sessions lists stored sessions, newest first.
func (m *DialogMesh) Sessions() ([]core.SessionInfo, error) {
	return m.opts.ChatStore.ListSessions()
}

// DeleteSession removes a session and its message log.
func (m *DialogMesh) DeleteSession(sessionID string) error {
	return m.opts.ChatStore.DeleteSession(sessionID)
}

// AddDocument embeds (when an embedder is configured) and stores a document
// for retrieval, returning its id.
func (m *DialogMesh) AddDocument(ctx context.Context, doc core.DocumentRecord) (string, error) {
	var embedding []float32
	if m.embedder != nil {
		vec, err := m.embedder.EmbedQuery(ctx, doc.Content)
		if err != nil {
			return "", err
		}
		embedding = vec
	}
	return m.docs.AddDocument(ctx, doc, embedding)
}

// DocumentStats reports counters of the underlying document store.
func (m *DialogMesh) DocumentStats() (core.DocumentStats, error) {
	return m.docs.Stats()
}

// NewSupervisor builds an orchestrator whose "assistant" agent wraps this
// instance's workflow engine. Further agents can be registered on the result.
func (m *DialogMesh) NewSupervisor(optFns ...func(o *supervisor.Options)) (*supervisor.Orchestrator, error) {
	o := supervisor.NewOrchestrator(m.llm, optFns...)
	agent := supervisor.NewWorkflowAgent(
		"assistant",
		"General-purpose assistant with tool use and document retrieval",
		m.engine,
	)
	if err := o.Register(agent); err != nil {
		return nil, err
	}
	return o, nil
}
