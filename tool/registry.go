package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the tools available to a workflow. Registration happens once
// during startup wiring; lookups are read-mostly afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error so wiring
// mistakes surface at startup instead of shadowing silently.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// SchemaSummary renders every tool's name, description and parameter schema
// into a text block for the detection prompt.
func (r *Registry) SchemaSummary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s", t.Name(), t.Description())
		if raw, err := json.Marshal(t.Parameters()); err == nil {
			fmt.Fprintf(&b, "\n  parameters: %s", raw)
		}
	}
	return b.String()
}
