package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/log"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/stream"
)

// Store is the narrow persistence surface the document sub-tasks need.
type Store interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error)
	SaveDocument(ctx context.Context, d *store.Document) error
	SaveSuggestions(ctx context.Context, suggestions []store.Suggestion) error
}

// TasksConfig holds the dependencies of the document sub-tasks.
type TasksConfig struct {
	Client llm.Client
	Store  Store

	// Model is the provider-side model driving the sub-task generations.
	Model string

	Logger log.Logger
}

func (c *TasksConfig) validate() error {
	if c.Client == nil {
		return errors.New("client is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Tasks implements the document sub-tasks invoked as tool executors:
// drafting, updating, and suggestion extraction. Each runs to completion
// within a single step of the loop, streams its intermediate output into
// the request's sink, and persists its result exactly once after the
// stream has been exhausted.
type Tasks struct {
	client llm.Client
	store  Store
	model  string
	logger log.Logger

	suggestionSchema *jsonschema.Resolved
}

// NewTasks creates the sub-task executors.
func NewTasks(cfg TasksConfig) (*Tasks, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid tasks config: %w", err)
	}

	schema, err := jsonschema.For[SuggestionItem](nil)
	if err != nil {
		return nil, fmt.Errorf("deriving suggestion schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving suggestion schema: %w", err)
	}

	return &Tasks{
		client:           cfg.Client,
		store:            cfg.Store,
		model:            cfg.Model,
		logger:           cfg.Logger,
		suggestionSchema: resolved,
	}, nil
}

// Register builds the three document tools and adds them to the registry.
func (t *Tasks) Register(g *genkit.Genkit, r *Registry) error {
	create, err := New(g, "createDocument",
		"Create a document for a writing activity. The document content is generated and shown to the user as it streams.",
		t.CreateDocument,
	)
	if err != nil {
		return err
	}

	update, err := New(g, "updateDocument",
		"Update an existing document with the described changes. The rewritten content replaces the prior version.",
		t.UpdateDocument,
	)
	if err != nil {
		return err
	}

	suggest, err := New(g, "requestSuggestions",
		"Request writing suggestions for an existing document. Each suggestion proposes a concrete sentence-level edit.",
		t.RequestSuggestions,
	)
	if err != nil {
		return err
	}

	for _, tool := range []*Tool{create, update, suggest} {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// emit appends a sideband event to the request's sink. Requests without a
// sink (non-streaming code paths) drop events silently.
func emit(ctx context.Context, ev stream.Event) error {
	sink := stream.SinkFromContext(ctx)
	if sink == nil {
		return nil
	}
	if err := sink.Append(ev); err != nil {
		return fmt.Errorf("emitting %s event: %w", ev.Type, err)
	}
	return nil
}
