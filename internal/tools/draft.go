package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/stream"
)

const draftSystemPrompt = "Write about the given topic. Markdown is supported. Use headings wherever appropriate."

// CreateDocumentInput is the parameter schema of the createDocument tool.
type CreateDocumentInput struct {
	Title string `json:"title" jsonschema_description:"Title of the document to create"`
}

// DocumentOutput is returned to the model by the document tools.
type DocumentOutput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// CreateDocument drafts a new document. It announces the document id and
// title, streams the generated content as text deltas while accumulating
// it, emits a finish marker on completion, and persists the full content
// exactly once after the stream is exhausted. No partial document is ever
// written.
func (t *Tasks) CreateDocument(ctx context.Context, input CreateDocumentInput) (DocumentOutput, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return DocumentOutput{}, ErrMissingUser
	}

	id := uuid.New()
	for _, ev := range []stream.Event{
		{Type: stream.EventID, Content: id.String()},
		{Type: stream.EventTitle, Content: input.Title},
		{Type: stream.EventClear, Content: ""},
	} {
		if err := emit(ctx, ev); err != nil {
			return DocumentOutput{}, err
		}
	}

	var draft strings.Builder
	_, err := t.client.Generate(ctx, llm.GenerateRequest{
		Model:    t.model,
		System:   draftSystemPrompt,
		Messages: []*ai.Message{ai.NewUserMessage(ai.NewTextPart(input.Title))},
	}, func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		delta := chunk.Text()
		if delta == "" {
			return nil
		}
		draft.WriteString(delta)
		return emit(ctx, stream.Event{Type: stream.EventTextDelta, Content: delta})
	})
	if err != nil {
		return DocumentOutput{}, fmt.Errorf("drafting document: %w", err)
	}

	if err := emit(ctx, stream.Event{Type: stream.EventFinish, Content: ""}); err != nil {
		return DocumentOutput{}, err
	}

	now := time.Now()
	doc := &store.Document{
		ID:        id,
		UserID:    userID,
		Title:     input.Title,
		Content:   draft.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.SaveDocument(ctx, doc); err != nil {
		return DocumentOutput{}, fmt.Errorf("saving document: %w", err)
	}

	t.logger.Info("document created", "document_id", id, "title", input.Title)

	return DocumentOutput{
		ID:      id.String(),
		Title:   input.Title,
		Message: "The document was created and is now visible to the user.",
	}, nil
}
