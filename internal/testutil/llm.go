// Package testutil provides shared test infrastructure: a scripted model
// client, an in-memory store with call recording, an SSE parser, and a
// PostgreSQL test container helper.
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/firebase/genkit/go/ai"

	"github.com/koopa0/quill/internal/llm"
)

// Step scripts one model turn of a MockClient.
type Step struct {
	// Chunks are streamed through the callback in order.
	Chunks []string

	// ToolRequests are returned unexecuted in the final response.
	ToolRequests []*ai.ToolRequest

	// Err, when set, is returned after the chunks have been streamed.
	Err error
}

// MockClient is a scripted llm.Client. Each Generate call consumes the
// next Step; GenerateObjects calls consume the next object sequence.
// All calls are recorded for side-effect assertions.
type MockClient struct {
	mu sync.Mutex

	Steps   []Step
	Objects [][]json.RawMessage

	// ObjectsErr, when set, is returned by GenerateObjects after its
	// sequence has been delivered.
	ObjectsErr error

	// Text and TextErr script GenerateText.
	Text    string
	TextErr error

	GenerateCalls []llm.GenerateRequest
	ObjectCalls   []llm.ObjectsRequest
	TextCalls     []string

	step      int
	objectSeq int
}

var _ llm.Client = (*MockClient)(nil)

func (m *MockClient) Generate(ctx context.Context, req llm.GenerateRequest, cb llm.StreamFunc) (*ai.ModelResponse, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, req)
	if m.step >= len(m.Steps) {
		m.mu.Unlock()
		return &ai.ModelResponse{Message: ai.NewModelMessage(ai.NewTextPart(""))}, nil
	}
	step := m.Steps[m.step]
	m.step++
	m.mu.Unlock()

	var parts []*ai.Part
	for _, chunk := range step.Chunks {
		if cb != nil {
			if err := cb(ctx, &ai.ModelResponseChunk{Content: []*ai.Part{ai.NewTextPart(chunk)}}); err != nil {
				return nil, err
			}
		}
		parts = append(parts, ai.NewTextPart(chunk))
	}
	if step.Err != nil {
		return nil, step.Err
	}

	for _, tr := range step.ToolRequests {
		parts = append(parts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr})
	}
	if len(parts) == 0 {
		parts = append(parts, ai.NewTextPart(""))
	}

	return &ai.ModelResponse{Message: &ai.Message{Role: ai.RoleModel, Content: parts}}, nil
}

func (m *MockClient) GenerateObjects(ctx context.Context, req llm.ObjectsRequest, each llm.ObjectFunc) error {
	m.mu.Lock()
	m.ObjectCalls = append(m.ObjectCalls, req)
	var seq []json.RawMessage
	if m.objectSeq < len(m.Objects) {
		seq = m.Objects[m.objectSeq]
		m.objectSeq++
	}
	m.mu.Unlock()

	for _, raw := range seq {
		if err := each(raw); err != nil {
			return err
		}
	}
	return m.ObjectsErr
}

func (m *MockClient) GenerateText(ctx context.Context, model, system, prompt string) (string, error) {
	m.mu.Lock()
	m.TextCalls = append(m.TextCalls, prompt)
	m.mu.Unlock()

	if m.TextErr != nil {
		return "", m.TextErr
	}
	return m.Text, nil
}
