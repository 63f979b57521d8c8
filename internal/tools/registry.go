// Package tools provides the registry of invocable capabilities and the
// document sub-tasks that run as tool side-effects.
//
// The registry is configured once at startup and is read-only afterwards;
// it is shared across requests with no mutable state. Parameter validation
// happens before invocation: a call whose parameters violate the tool's
// schema fails with ErrInvalidArguments and is never executed.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Registry maps tool names to their schema and executor.
//
// Thread safety: safe for concurrent Dispatch after registration is
// complete. Register is not safe to call concurrently with Dispatch;
// configure the registry fully before serving requests.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names are a configuration error.
func (r *Registry) Register(t *Tool) error {
	if _, exists := r.tools[t.name]; exists {
		return fmt.Errorf("tool %q already registered", t.name)
	}
	r.tools[t.name] = t
	r.order = append(r.order, t.name)
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Refs returns the model-facing references of all registered tools, in
// registration order.
func (r *Registry) Refs() []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(r.order))
	for _, name := range r.order {
		refs = append(refs, r.tools[name].ref)
	}
	return refs
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.tools)
}

// Dispatch validates the parameters against the named tool's schema and
// executes it. Returns ErrUnknownTool for unregistered names and
// ErrInvalidArguments (without executing) when validation fails.
func (r *Registry) Dispatch(ctx context.Context, name string, input any) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	// Validate against the canonical JSON form so numeric and null
	// handling matches what the schema saw at derivation time.
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := t.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	return t.run(ctx, raw)
}
