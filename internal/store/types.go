package store

import (
	"time"

	"github.com/google/uuid"
)

// Message roles as persisted. Tool-call artifacts are stripped before
// persistence; only these roles reach storage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Chat is one conversation, created exactly once on first user contact.
// Its id is chosen by the client and treated as an opaque string.
//
// Title is set at creation and never changes afterwards.
type Chat struct {
	ID        string
	UserID    uuid.UUID
	Title     string
	CreatedAt time.Time
}

// Message is one persisted conversation turn. Immutable once saved; the
// pipeline constructs new values, never mutates stored ones.
type Message struct {
	ID        uuid.UUID
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Document is a drafted artifact. Content grows append-only while a draft
// streams and is replaced wholesale on update; either way it is written
// here exactly once per sub-task, after the stream has been exhausted.
type Document struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Suggestion is one proposed edit for a document. Produced in batches by
// the suggestion extractor; immutable once persisted.
type Suggestion struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	UserID        uuid.UUID
	OriginalText  string
	SuggestedText string
	Description   string
	IsResolved    bool
	CreatedAt     time.Time
}
