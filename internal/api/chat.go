package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/koopa0/quill/internal/agent"
	"github.com/koopa0/quill/internal/auth"
	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/log"
	"github.com/koopa0/quill/internal/model"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/stream"
	"github.com/koopa0/quill/internal/tools"
)

// maxChatBody bounds the inbound request body.
const maxChatBody = 1 << 20

const systemPrompt = "You are a friendly writing assistant. Keep your replies concise and helpful. When the user asks for a piece of writing, use the createDocument tool; when they ask for changes to an existing document, use updateDocument; when they ask for feedback, use requestSuggestions."

// Store is the persistence surface of the chat endpoints.
type Store interface {
	GetChat(ctx context.Context, id string) (*store.Chat, error)
	SaveChat(ctx context.Context, c *store.Chat) error
	DeleteChat(ctx context.Context, id string) error
	SaveMessages(ctx context.Context, msgs []store.Message) error
}

// StepRunner drives the generation loop for one request.
type StepRunner interface {
	Run(ctx context.Context, req agent.Request, mux *stream.Mux) error
}

// Summarizer produces a chat title from the first user message.
// It must not fail; it always returns a usable title.
type Summarizer interface {
	Generate(ctx context.Context, userMessage string) string
}

type chatHandler struct {
	logger   log.Logger
	resolver *auth.Resolver
	store    Store
	runner   StepRunner
	titles   Summarizer
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	ID       string        `json:"id"`
	Messages []chatMessage `json:"messages"`
	ModelID  string        `json:"modelId,omitempty"`
}

// validate checks the decoded request. The chat id is an opaque
// client-chosen string; the last message must be from the user, it is the
// turn this request answers.
func (req *chatRequest) validate() (string, string, error) {
	chatID := strings.TrimSpace(req.ID)
	if chatID == "" {
		return "", "", errors.New("id must not be empty")
	}
	if len(req.Messages) == 0 {
		return "", "", errors.New("messages must not be empty")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != store.RoleUser || strings.TrimSpace(last.Content) == "" {
		return "", "", errors.New("last message must be a non-empty user message")
	}
	return chatID, last.Content, nil
}

// history converts the inbound messages to model form. Roles other than
// user and assistant are dropped; they never round-trip through clients.
func (req *chatRequest) history() []*ai.Message {
	msgs := make([]*ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case store.RoleUser:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case store.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	return msgs
}

// send handles POST /api/chat: validate, resolve identity and model,
// create the chat on first contact, persist the user message, then stream
// the generation as SSE.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.resolver.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to chat", h.logger)
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	chatID, userText, err := req.validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	// Model resolution against the static catalog, before any side effect.
	modelID := req.ModelID
	if modelID == "" {
		if cookie, err := r.Cookie(model.CookieName); err == nil {
			modelID = cookie.Value
		} else {
			modelID = model.DefaultID
		}
	}
	m, err := model.Lookup(modelID)
	if err != nil {
		writeError(w, http.StatusNotFound, "model_not_found", "unknown model: "+modelID, h.logger)
		return
	}

	// First contact creates the chat, with a generated title, exactly once.
	// The writes themselves are deferred (see ensure below) so a failure
	// before any streaming leaves no trace.
	var newChat *store.Chat
	existing, err := h.store.GetChat(ctx, chatID)
	switch {
	case errors.Is(err, store.ErrChatNotFound):
		newChat = &store.Chat{
			ID:     chatID,
			UserID: session.UserID,
			Title:  h.titles.Generate(ctx, userText),
		}
	case err != nil:
		h.logger.Error("loading chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load chat", h.logger)
		return
	case existing.UserID != session.UserID:
		writeError(w, http.StatusUnauthorized, "unauthorized", "chat belongs to another user", h.logger)
		return
	}

	// ensure persists the chat row (first contact) and the user message
	// once, before the first byte reaches the client. A generation that
	// dies before producing anything therefore persists nothing.
	var (
		persistOnce sync.Once
		persistErr  error
	)
	ensure := func() error {
		persistOnce.Do(func() {
			if newChat != nil {
				if persistErr = h.store.SaveChat(ctx, newChat); persistErr != nil {
					return
				}
			}
			persistErr = h.store.SaveMessages(ctx, []store.Message{{
				ChatID:    chatID,
				Role:      store.RoleUser,
				Content:   userText,
				CreatedAt: time.Now(),
			}})
		})
		if persistErr != nil {
			return fmt.Errorf("persisting chat state: %w", persistErr)
		}
		return nil
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported", h.logger)
		return
	}
	mux := stream.New(func(ev stream.Event) error {
		if err := ensure(); err != nil {
			return err
		}
		return sse.write(ev)
	})

	runCtx := tools.ContextWithUserID(ctx, session.UserID)
	err = h.runner.Run(runCtx, agent.Request{
		ChatID:  chatID,
		Model:   m.APIIdentifier,
		System:  systemPrompt,
		History: req.history(),
	}, mux)
	if err != nil {
		h.logger.Error("generation failed", "chat_id", chatID, "error", err)
		if !sse.started {
			status, code := generationStatus(err)
			writeError(w, status, code, "generation failed", h.logger)
			return
		}
		// Output already streamed: end abruptly, without the done marker,
		// so the client treats the stream as failed.
		return
	}

	// An empty reply produces no events; the user message still counts as
	// chat activity and must be durable.
	if err := ensure(); err != nil {
		h.logger.Error("saving chat state failed", "chat_id", chatID, "error", err)
		if !sse.started {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not save chat", h.logger)
		}
		return
	}

	sse.done()
}

// generationStatus maps a pre-stream generation failure to a status code.
// Quota exhaustion is user-actionable and gets its own status.
func generationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrQuotaExhausted):
		return http.StatusTooManyRequests, "quota_exhausted"
	default:
		return http.StatusInternalServerError, "generation_failed"
	}
}

// delete handles DELETE /api/chat?id=. Only the owner may delete a chat.
func (h *chatHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.resolver.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to delete chats", h.logger)
		return
	}

	chatID := strings.TrimSpace(r.URL.Query().Get("id"))
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must not be empty", h.logger)
		return
	}

	chat, err := h.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrChatNotFound) {
		writeError(w, http.StatusNotFound, "chat_not_found", "no such chat", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("loading chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load chat", h.logger)
		return
	}
	if chat.UserID != session.UserID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "chat belongs to another user", h.logger)
		return
	}

	if err := h.store.DeleteChat(ctx, chatID); err != nil {
		h.logger.Error("deleting chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not delete chat", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}
