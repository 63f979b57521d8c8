// Package llm wraps the external model capability behind a small,
// dependency-injected client interface: stream text (optionally with tool
// schemas, tool requests returned unexecuted), stream schema-validated
// objects, and one-shot text generation. No package-level client state
// exists; callers construct a client once and pass it down.
package llm

import (
	"context"
	"encoding/json"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/jsonschema-go/jsonschema"
)

// StreamFunc is called for each chunk of a streaming response.
// Returning an error aborts the stream.
type StreamFunc = ai.ModelStreamCallback

// GenerateRequest describes one model invocation of the step loop.
type GenerateRequest struct {
	Model    string // provider-side model name (e.g. "gpt-4o")
	System   string // optional system prompt
	Messages []*ai.Message

	// Tools are the schemas offered to the model. Requested calls are
	// returned to the caller unexecuted; dispatch is the step loop's job.
	Tools []ai.ToolRef
}

// ObjectsRequest describes a schema-constrained object generation.
type ObjectsRequest struct {
	Model  string
	System string
	Prompt string

	// Schema validates each element before it is yielded. Elements that
	// do not satisfy it are suppressed, never delivered malformed.
	Schema *jsonschema.Resolved
}

// ObjectFunc receives one complete, schema-valid object.
// Returning an error aborts the stream.
type ObjectFunc func(json.RawMessage) error

// Client is the model invocation adapter consumed by the step loop, the
// tool sub-tasks, and the title generator.
type Client interface {
	// Generate drives one model turn. Text deltas are delivered through cb
	// as they are produced; the returned response carries the final
	// message including any unexecuted tool requests. Fails with
	// ErrUnavailable / ErrQuotaExhausted when the call cannot start and
	// ErrStreamInterrupted when it dies mid-stream.
	Generate(ctx context.Context, req GenerateRequest, cb StreamFunc) (*ai.ModelResponse, error)

	// GenerateObjects streams a sequence of validated objects. each is
	// invoked once per complete element, in emission order.
	GenerateObjects(ctx context.Context, req ObjectsRequest, each ObjectFunc) error

	// GenerateText is a non-streaming convenience for short bounded
	// generations such as chat titles.
	GenerateText(ctx context.Context, model, system, prompt string) (string, error)
}
