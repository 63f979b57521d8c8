package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/quill/internal/agent"
	"github.com/koopa0/quill/internal/auth"
	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/log"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/testutil"
	"github.com/koopa0/quill/internal/tools"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubTitles struct{}

func (stubTitles) Generate(ctx context.Context, userMessage string) string {
	return "Test Chat"
}

type harness struct {
	client   *testutil.MockClient
	store    *testutil.MemStore
	resolver *auth.Resolver
	handler  http.Handler
}

func newHarness(t *testing.T, client *testutil.MockClient) *harness {
	t.Helper()

	st := testutil.NewMemStore()
	runner, err := agent.New(agent.Config{
		Client:   client,
		Registry: tools.NewRegistry(),
		Store:    st,
		Logger:   log.NewNop(),
	})
	require.NoError(t, err)

	resolver := auth.NewResolver(testSecret)
	srv, err := NewServer(Config{
		Logger:    log.NewNop(),
		Resolver:  resolver,
		Store:     st,
		Runner:    runner,
		Titles:    stubTitles{},
		RateLimit: 1000,
		RateBurst: 1000,
	})
	require.NoError(t, err)

	return &harness{
		client:   client,
		store:    st,
		resolver: resolver,
		handler:  srv.Handler(),
	}
}

func (h *harness) post(t *testing.T, userID uuid.UUID, body chatRequest) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(raw))
	if userID != uuid.Nil {
		req.AddCookie(h.resolver.Issue(userID))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// replyText reconstructs the primary text channel from the SSE body.
func replyText(t *testing.T, body string) string {
	t.Helper()

	var b strings.Builder
	for _, ev := range testutil.EventsOfType(testutil.ParseSSE(t, body), "message") {
		var delta string
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &delta))
		b.WriteString(delta)
	}
	return b.String()
}

func firstContact(chatID, text string) chatRequest {
	return chatRequest{
		ID:       chatID,
		Messages: []chatMessage{{Role: store.RoleUser, Content: text}},
		ModelID:  "gpt-3.5-turbo",
	}
}

func TestChatUnauthorized(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})

	rec := h.post(t, uuid.Nil, firstContact("c1", "Hello"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.client.GenerateCalls)
}

func TestChatUnknownModel(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})

	body := firstContact("c1", "Hello")
	body.ModelID = "gpt-99"
	rec := h.post(t, uuid.New(), body)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "model_not_found", resp.Error)

	// No side effects before any stream starts.
	assert.Empty(t, h.client.GenerateCalls)
	assert.Zero(t, h.store.SaveChatCalls)
	assert.Zero(t, h.store.SaveMessagesCalls)
}

func TestChatMalformedBody(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	req.AddCookie(h.resolver.Issue(uuid.New()))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatInvalidRequest(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})
	userID := uuid.New()

	tests := []struct {
		name string
		body chatRequest
	}{
		{
			name: "missing id",
			body: chatRequest{ID: "  ", Messages: []chatMessage{{Role: store.RoleUser, Content: "hi"}}},
		},
		{
			name: "no messages",
			body: chatRequest{ID: "c1"},
		},
		{
			name: "last message not from user",
			body: chatRequest{ID: "c1", Messages: []chatMessage{{Role: store.RoleAssistant, Content: "hi"}}},
		},
		{
			name: "last message empty",
			body: chatRequest{ID: "c1", Messages: []chatMessage{{Role: store.RoleUser, Content: "   "}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.post(t, userID, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, h.store.SaveChatCalls)
}

func TestChatFirstContact(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{
		Steps: []testutil.Step{{Chunks: []string{"Hi ", "there!"}}},
	})

	// Chat ids are opaque client-chosen strings, not UUIDs.
	chatID := "c1"
	userID := uuid.New()
	rec := h.post(t, userID, firstContact(chatID, "Hello"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	// Exactly one chat created, with a non-empty title, owned by the user.
	assert.Equal(t, 1, h.store.SaveChatCalls)
	chats := h.store.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "Test Chat", chats[0].Title)
	assert.Equal(t, userID, chats[0].UserID)

	// The user message precedes the assistant reply, and the streamed
	// deltas reconstruct the persisted assistant text.
	msgs := h.store.Messages(chatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi there!", msgs[1].Content)
	assert.Equal(t, msgs[1].Content, replyText(t, rec.Body.String()))

	// Clean termination marker.
	events := testutil.ParseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "done", events[len(events)-1].Type)
}

func TestChatExistingChat(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{
		Steps: []testutil.Step{{Chunks: []string{"Again."}}},
	})

	chatID := "c1"
	userID := uuid.New()
	require.NoError(t, h.store.SaveChat(context.Background(), &store.Chat{
		ID: chatID, UserID: userID, Title: "Existing",
	}))
	h.store.SaveChatCalls = 0

	rec := h.post(t, userID, firstContact(chatID, "More"))
	require.Equal(t, http.StatusOK, rec.Code)

	// No second chat creation, title unchanged.
	assert.Zero(t, h.store.SaveChatCalls)
	chats := h.store.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "Existing", chats[0].Title)
}

func TestChatWrongOwner(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})

	chatID := "c1"
	require.NoError(t, h.store.SaveChat(context.Background(), &store.Chat{
		ID: chatID, UserID: uuid.New(), Title: "Hers",
	}))

	rec := h.post(t, uuid.New(), firstContact(chatID, "Hello"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.client.GenerateCalls)
}

func TestChatQuotaExhaustedBeforeStreaming(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{
		Steps: []testutil.Step{{Err: llm.ErrQuotaExhausted}},
	})

	chatID := "c1"
	rec := h.post(t, uuid.New(), firstContact(chatID, "Hello"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "quota_exhausted", resp.Error)

	// Nothing persisted when the failure precedes any streaming.
	assert.Zero(t, h.store.SaveChatCalls)
	assert.Zero(t, h.store.SaveMessagesCalls)
	assert.Empty(t, h.store.Chats())
}

func TestChatModelCookieFallback(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{
		Steps: []testutil.Step{{Chunks: []string{"ok"}}},
	})

	body := firstContact("c1", "Hello")
	body.ModelID = ""
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(raw))
	req.AddCookie(h.resolver.Issue(uuid.New()))
	req.AddCookie(&http.Cookie{Name: "model-id", Value: "gpt-4o"})
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.client.GenerateCalls, 1)
	assert.Equal(t, "gpt-4o", h.client.GenerateCalls[0].Model)
}

func TestDeleteChat(t *testing.T) {
	h := newHarness(t, &testutil.MockClient{})

	chatID := "c1"
	owner := uuid.New()
	require.NoError(t, h.store.SaveChat(context.Background(), &store.Chat{
		ID: chatID, UserID: owner, Title: "Mine",
	}))

	del := func(userID uuid.UUID, id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/chat?id="+id, nil)
		if userID != uuid.Nil {
			req.AddCookie(h.resolver.Issue(userID))
		}
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, del(uuid.Nil, chatID).Code)
	assert.Equal(t, http.StatusBadRequest, del(owner, "").Code)
	assert.Equal(t, http.StatusNotFound, del(owner, "no-such-chat").Code)
	assert.Equal(t, http.StatusUnauthorized, del(uuid.New(), chatID).Code)

	// Chat untouched by all of the above.
	require.Len(t, h.store.Chats(), 1)

	assert.Equal(t, http.StatusOK, del(owner, chatID).Code)
	assert.Empty(t, h.store.Chats())
}
