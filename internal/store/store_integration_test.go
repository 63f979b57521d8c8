//go:build integration
// +build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/quill/internal/log"
	"github.com/koopa0/quill/internal/store"
	"github.com/koopa0/quill/internal/testutil"
)

// Run with: go test -race -tags=integration ./internal/store/...

func newStore(t *testing.T) *store.Postgres {
	t.Helper()
	pool := testutil.SetupPostgres(t)
	return store.NewPostgres(pool, log.NewNop())
}

func saveChat(t *testing.T, s *store.Postgres, userID uuid.UUID) *store.Chat {
	t.Helper()
	c := &store.Chat{ID: uuid.NewString(), UserID: userID, Title: "Trip Notes"}
	require.NoError(t, s.SaveChat(context.Background(), c))
	return c
}

func TestChatRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	userID := uuid.New()
	c := saveChat(t, s, userID)

	got, err := s.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "Trip Notes", got.Title)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetChat(ctx, "no-such-chat")
	assert.ErrorIs(t, err, store.ErrChatNotFound)

	// Chats are created exactly once.
	assert.Error(t, s.SaveChat(ctx, c))
}

func TestMessagesOrderedByCreation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c := saveChat(t, s, uuid.New())

	base := time.Now().Add(-time.Minute)
	msgs := []store.Message{
		{ChatID: c.ID, Role: store.RoleUser, Content: "first", CreatedAt: base},
		{ChatID: c.ID, Role: store.RoleAssistant, Content: "second", CreatedAt: base.Add(time.Second)},
		{ChatID: c.ID, Role: store.RoleUser, Content: "third", CreatedAt: base.Add(2 * time.Second)},
	}
	require.NoError(t, s.SaveMessages(ctx, msgs))

	got, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, "third", got[2].Content)

	// IDs are assigned by the batch insert when absent.
	for _, m := range got {
		assert.NotEqual(t, uuid.Nil, m.ID)
	}
}

func TestSaveMessagesRejectsUnknownChat(t *testing.T) {
	s := newStore(t)

	err := s.SaveMessages(context.Background(), []store.Message{
		{ChatID: "orphan-chat", Role: store.RoleUser, Content: "orphan"},
	})
	assert.Error(t, err)
}

func TestDeleteChatCascadesMessages(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c := saveChat(t, s, uuid.New())
	require.NoError(t, s.SaveMessages(ctx, []store.Message{
		{ChatID: c.ID, Role: store.RoleUser, Content: "hello"},
	}))

	require.NoError(t, s.DeleteChat(ctx, c.ID))

	_, err := s.GetChat(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrChatNotFound)

	got, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, s.DeleteChat(ctx, c.ID), store.ErrChatNotFound)
}

func TestDocumentUpsertReplacesContent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	d := &store.Document{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Title:   "Draft",
		Content: "# Draft\nFirst version.",
	}
	require.NoError(t, s.SaveDocument(ctx, d))

	created := d.CreatedAt
	d.Title = "Draft v2"
	d.Content = "# Draft\nRewritten wholesale."
	require.NoError(t, s.SaveDocument(ctx, d))

	got, err := s.GetDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft v2", got.Title)
	assert.Equal(t, "# Draft\nRewritten wholesale.", got.Content)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))

	_, err = s.GetDocument(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}

func TestSuggestionsBatchInsert(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	userID := uuid.New()
	d := &store.Document{ID: uuid.New(), UserID: userID, Title: "Essay", Content: "Some prose."}
	require.NoError(t, s.SaveDocument(ctx, d))

	batch := []store.Suggestion{
		{DocumentID: d.ID, UserID: userID, OriginalText: "Some prose.", SuggestedText: "Better prose.", Description: "tighten"},
		{DocumentID: d.ID, UserID: userID, OriginalText: "Some prose.", SuggestedText: "Best prose."},
	}
	require.NoError(t, s.SaveSuggestions(ctx, batch))

	// IDs assigned in place during the batch insert.
	assert.NotEqual(t, uuid.Nil, batch[0].ID)
	assert.NotEqual(t, uuid.Nil, batch[1].ID)

	// Empty batch is a no-op.
	require.NoError(t, s.SaveSuggestions(ctx, nil))

	// Unknown document violates the foreign key.
	err := s.SaveSuggestions(ctx, []store.Suggestion{
		{DocumentID: uuid.New(), UserID: userID, OriginalText: "a", SuggestedText: "b"},
	})
	assert.Error(t, err)
}
