package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/stream"
)

const suggestSystemPrompt = "You are a careful editor. Given a piece of writing, propose concrete improvements as a JSON array of suggestion objects. Each suggestion must quote a full original sentence, give a full rewritten sentence, and briefly describe the change. Propose at most five suggestions."

// RequestSuggestionsInput is the parameter schema of the
// requestSuggestions tool.
type RequestSuggestionsInput struct {
	DocumentID string `json:"documentId" jsonschema_description:"ID of the document to request suggestions for"`
}

// SuggestionItem is one model-produced suggestion. Elements that do not
// satisfy this schema are suppressed by the object stream, never
// delivered malformed.
type SuggestionItem struct {
	OriginalSentence  string `json:"originalSentence" jsonschema_description:"The original sentence, quoted in full"`
	SuggestedSentence string `json:"suggestedSentence" jsonschema_description:"The full rewritten sentence"`
	Description       string `json:"description" jsonschema_description:"Brief description of the change"`
}

// SuggestionEvent is the sideband payload relayed to the client for each
// accepted suggestion.
type SuggestionEvent struct {
	ID            string `json:"id"`
	DocumentID    string `json:"documentId"`
	OriginalText  string `json:"originalText"`
	SuggestedText string `json:"suggestedText"`
	Description   string `json:"description"`
	IsResolved    bool   `json:"isResolved"`
}

// SuggestionsOutput is returned to the model by requestSuggestions.
type SuggestionsOutput struct {
	DocumentID string `json:"documentId"`
	Count      int    `json:"count"`
	Message    string `json:"message"`
}

// RequestSuggestions streams schema-validated suggestion objects for an
// existing, non-empty document, relays each to the client, and persists
// the full batch exactly once after the stream completes. The document
// checks happen before any model invocation.
func (t *Tasks) RequestSuggestions(ctx context.Context, input RequestSuggestionsInput) (SuggestionsOutput, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return SuggestionsOutput{}, ErrMissingUser
	}

	docID, err := uuid.Parse(input.DocumentID)
	if err != nil {
		return SuggestionsOutput{}, fmt.Errorf("%w: %q", store.ErrDocumentNotFound, input.DocumentID)
	}
	doc, err := t.store.GetDocument(ctx, docID)
	if err != nil {
		return SuggestionsOutput{}, fmt.Errorf("loading document: %w", err)
	}
	if doc.UserID != userID {
		return SuggestionsOutput{}, fmt.Errorf("%w: %q", store.ErrDocumentNotFound, input.DocumentID)
	}
	if doc.Content == "" {
		return SuggestionsOutput{}, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.ID)
	}

	var batch []store.Suggestion
	err = t.client.GenerateObjects(ctx, llm.ObjectsRequest{
		Model:  t.model,
		System: suggestSystemPrompt,
		Prompt: doc.Content,
		Schema: t.suggestionSchema,
	}, func(raw json.RawMessage) error {
		var item SuggestionItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("decoding suggestion: %w", err)
		}

		s := store.Suggestion{
			ID:            uuid.New(),
			DocumentID:    doc.ID,
			UserID:        userID,
			OriginalText:  item.OriginalSentence,
			SuggestedText: item.SuggestedSentence,
			Description:   item.Description,
			CreatedAt:     time.Now(),
		}
		batch = append(batch, s)

		return emit(ctx, stream.Event{Type: stream.EventSuggestion, Content: SuggestionEvent{
			ID:            s.ID.String(),
			DocumentID:    s.DocumentID.String(),
			OriginalText:  s.OriginalText,
			SuggestedText: s.SuggestedText,
			Description:   s.Description,
			IsResolved:    s.IsResolved,
		}})
	})
	if err != nil {
		return SuggestionsOutput{}, fmt.Errorf("extracting suggestions: %w", err)
	}

	if len(batch) > 0 {
		if err := t.store.SaveSuggestions(ctx, batch); err != nil {
			return SuggestionsOutput{}, fmt.Errorf("saving suggestions: %w", err)
		}
	}

	t.logger.Info("suggestions extracted", "document_id", doc.ID, "count", len(batch))

	return SuggestionsOutput{
		DocumentID: doc.ID.String(),
		Count:      len(batch),
		Message:    "Suggestions were generated and are now visible to the user.",
	}, nil
}
