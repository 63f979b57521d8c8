package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/quill/internal/store"
)

// MemStore is an in-memory implementation of the persistence surface with
// call recording, for asserting side effects (and their absence) without
// a database. Failure injection per method via the Fail* fields.
type MemStore struct {
	mu sync.Mutex

	chats       map[string]store.Chat
	messages    map[string][]store.Message
	documents   map[uuid.UUID]store.Document
	suggestions map[uuid.UUID][]store.Suggestion

	SaveChatCalls        int
	SaveMessagesCalls    int
	SaveDocumentCalls    int
	SaveSuggestionsCalls int
	DeleteChatCalls      int

	FailSaveChat        error
	FailSaveMessages    error
	FailSaveDocument    error
	FailSaveSuggestions error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		chats:       make(map[string]store.Chat),
		messages:    make(map[string][]store.Message),
		documents:   make(map[uuid.UUID]store.Document),
		suggestions: make(map[uuid.UUID][]store.Suggestion),
	}
}

func (m *MemStore) GetChat(ctx context.Context, id string) (*store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrChatNotFound, id)
	}
	return &c, nil
}

func (m *MemStore) SaveChat(ctx context.Context, c *store.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveChatCalls++
	if m.FailSaveChat != nil {
		return m.FailSaveChat
	}
	saved := *c
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	m.chats[saved.ID] = saved
	return nil
}

func (m *MemStore) DeleteChat(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteChatCalls++
	if _, ok := m.chats[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrChatNotFound, id)
	}
	delete(m.chats, id)
	delete(m.messages, id)
	return nil
}

func (m *MemStore) SaveMessages(ctx context.Context, msgs []store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveMessagesCalls++
	if m.FailSaveMessages != nil {
		return m.FailSaveMessages
	}
	for _, msg := range msgs {
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	}
	return nil
}

func (m *MemStore) ListMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append([]store.Message(nil), m.messages[chatID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (m *MemStore) GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDocumentNotFound, id)
	}
	return &d, nil
}

func (m *MemStore) SaveDocument(ctx context.Context, d *store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveDocumentCalls++
	if m.FailSaveDocument != nil {
		return m.FailSaveDocument
	}
	m.documents[d.ID] = *d
	return nil
}

func (m *MemStore) SaveSuggestions(ctx context.Context, suggestions []store.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveSuggestionsCalls++
	if m.FailSaveSuggestions != nil {
		return m.FailSaveSuggestions
	}
	for _, s := range suggestions {
		m.suggestions[s.DocumentID] = append(m.suggestions[s.DocumentID], s)
	}
	return nil
}

// Documents returns a snapshot of all stored documents.
func (m *MemStore) Documents() []store.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]store.Document, 0, len(m.documents))
	for _, d := range m.documents {
		docs = append(docs, d)
	}
	return docs
}

// Suggestions returns the stored suggestions for one document.
func (m *MemStore) Suggestions(documentID uuid.UUID) []store.Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]store.Suggestion(nil), m.suggestions[documentID]...)
}

// Messages returns the stored messages for one chat, in insertion order.
func (m *MemStore) Messages(chatID string) []store.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]store.Message(nil), m.messages[chatID]...)
}

// Chats returns a snapshot of all stored chats.
func (m *MemStore) Chats() []store.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()

	chats := make([]store.Chat, 0, len(m.chats))
	for _, c := range m.chats {
		chats = append(chats, c)
	}
	return chats
}
