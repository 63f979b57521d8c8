package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one invocable capability: a name, a parameter schema, and an
// executor. Execution logic is type-erased so heterogeneous tools can live
// in one registry while constructors stay compile-time type safe.
type Tool struct {
	name        string
	description string
	schema      *jsonschema.Resolved
	ref         ai.Tool

	// run is the type-erased executor. It receives the raw JSON
	// parameters, already validated against schema.
	run func(ctx context.Context, raw json.RawMessage) (any, error)
}

// Name returns the tool's unique identifier.
func (t *Tool) Name() string {
	return t.name
}

// Description returns the description the model uses to decide when to
// call the tool.
func (t *Tool) Description() string {
	return t.description
}

// Ref returns the model-facing tool reference used to offer this tool's
// schema during generation. The model only ever sees the schema; execution
// stays with the registry.
func (t *Tool) Ref() ai.ToolRef {
	return t.ref
}

// New creates a tool with type-safe input and output handling.
//
// The parameter schema is derived from In's struct tags
// (jsonschema_description) and resolved once at construction; Dispatch
// validates every call against it before the handler runs. The tool is
// also registered with Genkit so its schema can be offered to the model.
func New[In, Out any](
	g *genkit.Genkit,
	name string,
	description string,
	handler func(context.Context, In) (Out, error),
) (*Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("deriving schema for %s: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving schema for %s: %w", name, err)
	}

	ref := genkit.DefineTool(g, name, description,
		func(toolCtx *ai.ToolContext, input In) (Out, error) {
			return handler(toolCtx.Context, input)
		},
	)

	run := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var input In
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		return handler(ctx, input)
	}

	return &Tool{
		name:        name,
		description: description,
		schema:      resolved,
		ref:         ref,
		run:         run,
	}, nil
}
