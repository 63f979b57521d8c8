// Package agent implements the step loop that drives a model through a
// bounded number of reasoning and tool-use turns for one request.
//
// One run proceeds through up to MaxSteps model invocations. Text deltas
// are forwarded to the request's sink as they arrive; tool requests are
// dispatched through the registry and their results fed back into the
// message history for the next step. The run finalizes by persisting the
// assistant's reply and then, and only then, closing the sink.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"

	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/log"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/stream"
	"github.com/koopa0/quill/internal/tools"
)

// DefaultMaxSteps bounds the number of model invocations per request.
const DefaultMaxSteps = 5

// MessageStore is the persistence surface the runner needs for
// finalization.
type MessageStore interface {
	SaveMessages(ctx context.Context, msgs []store.Message) error
}

// Config holds the runner's dependencies.
type Config struct {
	Client   llm.Client
	Registry *tools.Registry
	Store    MessageStore
	Logger   log.Logger

	// MaxSteps caps model invocations per run. Zero means DefaultMaxSteps.
	MaxSteps int
}

func (c *Config) validate() error {
	if c.Client == nil {
		return errors.New("client is required")
	}
	if c.Registry == nil {
		return errors.New("registry is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.MaxSteps < 0 {
		return errors.New("max steps must not be negative")
	}
	return nil
}

// Runner executes the step loop. It is stateless across requests and safe
// for concurrent use.
type Runner struct {
	client   llm.Client
	registry *tools.Registry
	store    MessageStore
	logger   log.Logger
	maxSteps int
}

// New creates a runner.
func New(cfg Config) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Runner{
		client:   cfg.Client,
		registry: cfg.Registry,
		store:    cfg.Store,
		logger:   cfg.Logger,
		maxSteps: cfg.MaxSteps,
	}, nil
}

// Request describes one run of the step loop.
type Request struct {
	ChatID  string
	Model   string
	System  string
	History []*ai.Message
}

// Run drives the loop to completion. The assistant's text deltas stream
// into mux as they are produced; on success the sanitized reply is
// persisted and mux is closed. A persistence failure at finalization is
// logged and returned without closing mux, so the client sees an abrupt
// end rather than a clean termination for output that was never saved.
func (r *Runner) Run(ctx context.Context, req Request, mux *stream.Mux) error {
	ctx = stream.ContextWithSink(ctx, mux)

	messages := req.History
	refs := r.registry.Refs()

	var reply strings.Builder
	forward := func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		delta := chunk.Text()
		if delta == "" {
			return nil
		}
		reply.WriteString(delta)
		return mux.Append(stream.Event{Type: stream.EventMessage, Content: delta})
	}

	for step := 1; ; step++ {
		resp, err := r.client.Generate(ctx, llm.GenerateRequest{
			Model:    req.Model,
			System:   req.System,
			Messages: messages,
			Tools:    refs,
		}, forward)
		if err != nil {
			return fmt.Errorf("model invocation (step %d): %w", step, err)
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			break
		}
		if step >= r.maxSteps {
			// Reaching the bound is not an error; the last partial
			// response is finalized as-is.
			r.logger.Warn("step bound reached with pending tool requests",
				"chat_id", req.ChatID, "pending", len(requests))
			break
		}

		messages = append(messages, resp.Message)

		results, err := r.dispatchAll(ctx, requests)
		if err != nil {
			return err
		}
		messages = append(messages, ai.NewMessage(ai.RoleTool, nil, results...))
	}

	return r.finalize(ctx, req.ChatID, reply.String(), mux)
}

// dispatchAll executes the step's tool requests concurrently. Sub-tasks
// share no mutable state beyond the sink, whose appends are serialized, so
// no further coordination is needed. Results keep request order regardless
// of completion order to keep the history deterministic.
func (r *Runner) dispatchAll(ctx context.Context, requests []*ai.ToolRequest) ([]*ai.Part, error) {
	results := make([]*ai.Part, len(requests))
	fatals := make([]error, len(requests))

	var wg sync.WaitGroup
	for i, tr := range requests {
		wg.Add(1)
		go func(i int, tr *ai.ToolRequest) {
			defer wg.Done()

			output, err := r.registry.Dispatch(ctx, tr.Name, tr.Input)
			if err != nil {
				if isFatal(err) {
					fatals[i] = fmt.Errorf("tool %s: %w", tr.Name, err)
					return
				}
				// A validated tool failure is a designed recovery path:
				// describe it to the model as the tool's result and let it
				// adapt.
				r.logger.Warn("tool failed", "tool", tr.Name, "error", err)
				output = map[string]any{"error": err.Error()}
			}

			results[i] = ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   tr.Name,
				Ref:    tr.Ref,
				Output: output,
			})
		}(i, tr)
	}
	wg.Wait()

	for _, err := range fatals {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// finalize persists the assistant reply and closes the sink. Only text
// content reaches storage; tool-call artifacts never accumulate in reply,
// so sanitization holds by construction.
func (r *Runner) finalize(ctx context.Context, chatID string, text string, mux *stream.Mux) error {
	if strings.TrimSpace(text) != "" {
		msg := store.Message{
			ChatID:  chatID,
			Role:    store.RoleAssistant,
			Content: text,
		}
		if err := r.store.SaveMessages(ctx, []store.Message{msg}); err != nil {
			r.logger.Error("persisting assistant message failed",
				"chat_id", chatID, "error", err)
			return fmt.Errorf("persisting assistant message: %w", err)
		}
	}

	if err := mux.Close(); err != nil {
		return fmt.Errorf("closing stream: %w", err)
	}
	return nil
}

// isFatal reports whether a tool failure aborts the whole run instead of
// being fed back to the model. Model-level failures and sink invariant
// violations are fatal; validation and execution errors are not.
func isFatal(err error) bool {
	return errors.Is(err, llm.ErrUnavailable) ||
		errors.Is(err, llm.ErrQuotaExhausted) ||
		errors.Is(err, llm.ErrStreamInterrupted) ||
		errors.Is(err, stream.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
