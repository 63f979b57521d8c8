package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/quill/internal/log"
)

// Provider is the genkit plugin prefix for model names.
const Provider = "openai"

// GenkitClient implements Client on top of a genkit instance configured
// with the OpenAI-compatible plugin.
type GenkitClient struct {
	g      *genkit.Genkit
	logger log.Logger
}

var _ Client = (*GenkitClient)(nil)

// NewGenkitClient wraps an initialized genkit instance.
func NewGenkitClient(g *genkit.Genkit, logger log.Logger) *GenkitClient {
	return &GenkitClient{g: g, logger: logger}
}

// qualified turns a provider model name into a genkit model reference.
func qualified(model string) string {
	return Provider + "/" + model
}

// Generate implements Client.
func (c *GenkitClient) Generate(ctx context.Context, req GenerateRequest, cb StreamFunc) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(qualified(req.Model)),
		ai.WithMessages(req.Messages...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if len(req.Tools) > 0 {
		// Tool requests come back unexecuted; the step loop owns dispatch.
		opts = append(opts, ai.WithTools(req.Tools...), ai.WithReturnToolRequests(true))
	}

	// Track whether any chunk reached the caller so failures can be
	// classified as interrupted vs never-started.
	var streamed atomic.Bool
	if cb != nil {
		inner := cb
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			streamed.Store(true)
			return inner(ctx, chunk)
		}))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		c.logger.Debug("model generation failed",
			"model", req.Model,
			"streamed", streamed.Load(),
			"error", err)
		return nil, classify(err, streamed.Load())
	}
	return resp, nil
}

// GenerateObjects implements Client. The model is prompted to emit a JSON
// array; elements are cut out of the stream as they complete, validated
// against the request schema, and yielded one at a time. Invalid or
// truncated elements are suppressed.
func (c *GenkitClient) GenerateObjects(ctx context.Context, req ObjectsRequest, each ObjectFunc) error {
	var (
		scanner  objectScanner
		streamed atomic.Bool
		emitErr  error
	)

	emit := func(raw json.RawMessage) error {
		var instance any
		if err := json.Unmarshal(raw, &instance); err != nil {
			return nil // unreachable for scanner output, but stay safe
		}
		if req.Schema != nil {
			if err := req.Schema.Validate(instance); err != nil {
				c.logger.Debug("suppressing schema-invalid object", "error", err)
				return nil
			}
		}
		return each(raw)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(qualified(req.Model)),
		ai.WithPrompt(req.Prompt),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			streamed.Store(true)
			if err := scanner.feed(chunk.Text(), emit); err != nil {
				emitErr = err
				return err
			}
			return nil
		}),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}

	if _, err := genkit.Generate(ctx, c.g, opts...); err != nil {
		if emitErr != nil {
			return fmt.Errorf("object consumer: %w", emitErr)
		}
		return classify(err, streamed.Load())
	}
	if scanner.pending() {
		// The provider ended the stream inside an element.
		return fmt.Errorf("truncated object stream: %w", ErrStreamInterrupted)
	}
	return nil
}

// GenerateText implements Client.
func (c *GenkitClient) GenerateText(ctx context.Context, model, system, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(qualified(model)),
		ai.WithPrompt(prompt),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", classify(err, false)
	}
	return resp.Text(), nil
}
