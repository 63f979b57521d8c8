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

// UpdateDocumentInput is the parameter schema of the updateDocument tool.
type UpdateDocumentInput struct {
	ID          string `json:"id" jsonschema_description:"ID of the document to update"`
	Description string `json:"description" jsonschema_description:"Description of the changes to make"`
}

// UpdateDocument rewrites an existing document according to the change
// description. The rewritten content streams as text deltas into a working
// copy and replaces the stored content wholesale, in a single write, once
// the stream completes.
func (t *Tasks) UpdateDocument(ctx context.Context, input UpdateDocumentInput) (DocumentOutput, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return DocumentOutput{}, ErrMissingUser
	}

	docID, err := uuid.Parse(input.ID)
	if err != nil {
		return DocumentOutput{}, fmt.Errorf("%w: %q", store.ErrDocumentNotFound, input.ID)
	}
	doc, err := t.store.GetDocument(ctx, docID)
	if err != nil {
		return DocumentOutput{}, fmt.Errorf("loading document: %w", err)
	}
	// Documents belonging to other users are reported as missing so that
	// ids cannot be probed across accounts.
	if doc.UserID != userID {
		return DocumentOutput{}, fmt.Errorf("%w: %q", store.ErrDocumentNotFound, input.ID)
	}

	for _, ev := range []stream.Event{
		{Type: stream.EventID, Content: doc.ID.String()},
		{Type: stream.EventClear, Content: ""},
	} {
		if err := emit(ctx, ev); err != nil {
			return DocumentOutput{}, err
		}
	}

	system := fmt.Sprintf(
		"Rewrite the following document according to the requested changes. Keep everything that the request does not ask to change. Respond with the complete updated document.\n\n%s",
		doc.Content,
	)

	var updated strings.Builder
	_, err = t.client.Generate(ctx, llm.GenerateRequest{
		Model:    t.model,
		System:   system,
		Messages: []*ai.Message{ai.NewUserMessage(ai.NewTextPart(input.Description))},
	}, func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		delta := chunk.Text()
		if delta == "" {
			return nil
		}
		updated.WriteString(delta)
		return emit(ctx, stream.Event{Type: stream.EventTextDelta, Content: delta})
	})
	if err != nil {
		return DocumentOutput{}, fmt.Errorf("updating document: %w", err)
	}

	if err := emit(ctx, stream.Event{Type: stream.EventFinish, Content: ""}); err != nil {
		return DocumentOutput{}, err
	}

	doc.Content = updated.String()
	doc.UpdatedAt = time.Now()
	if err := t.store.SaveDocument(ctx, doc); err != nil {
		return DocumentOutput{}, fmt.Errorf("saving document: %w", err)
	}

	t.logger.Info("document updated", "document_id", doc.ID, "user_id", userID)

	return DocumentOutput{
		ID:      doc.ID.String(),
		Title:   doc.Title,
		Message: "The document was updated and the new version is visible to the user.",
	}, nil
}
