// Package store persists chats, messages, documents, and suggestions in
// PostgreSQL. It is the only durable collaborator of the request pipeline;
// per-row atomicity comes from single-statement writes and batch inserts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/quill/internal/log"
)

// Postgres implements the storage collaborator over a pgx connection pool.
// Safe for concurrent use by multiple goroutines.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres creates a store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) *Postgres {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// GetChat retrieves a chat by id. Returns ErrChatNotFound if absent.
func (s *Postgres) GetChat(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("get chat %s: %w", id, err)
	}
	return &c, nil
}

// SaveChat inserts a new chat. Chats are created exactly once; a second
// save for the same id is a conflict surfaced as an error.
func (s *Postgres) SaveChat(ctx context.Context, c *Chat) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (id, user_id, title, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.UserID, c.Title, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save chat %s: %w", c.ID, err)
	}
	s.logger.Debug("saved chat", "id", c.ID, "title", c.Title)
	return nil
}

// DeleteChat removes a chat and, via FK cascade, its messages.
// Returns ErrChatNotFound if nothing was deleted.
func (s *Postgres) DeleteChat(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	s.logger.Debug("deleted chat", "id", id)
	return nil
}

// SaveMessages appends messages in order using a single batch round trip.
func (s *Postgres) SaveMessages(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range msgs {
		m := &msgs[i]
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		batch.Queue(
			`INSERT INTO messages (id, chat_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.ChatID, m.Role, m.Content, m.CreatedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() {
		if err := results.Close(); err != nil {
			s.logger.Warn("closing message batch", "error", err)
		}
	}()

	for range msgs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save messages: %w", err)
		}
	}
	return nil
}

// ListMessages returns a chat's messages in creation order.
func (s *Postgres) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, role, content, created_at
		 FROM messages WHERE chat_id = $1 ORDER BY created_at, id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages for chat %s: %w", chatID, err)
	}
	return msgs, nil
}

// GetDocument retrieves a document by id. Returns ErrDocumentNotFound if absent.
func (s *Postgres) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	var d Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.UserID, &d.Title, &d.Content, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &d, nil
}

// SaveDocument creates the document or atomically replaces its content and
// title. The single upsert statement is what gives the updater its
// replace-wholesale semantics.
func (s *Postgres) SaveDocument(ctx context.Context, d *Document) error {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, user_id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		d.ID, d.UserID, d.Title, d.Content, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}
	s.logger.Debug("saved document", "id", d.ID, "title", d.Title, "bytes", len(d.Content))
	return nil
}

// SaveSuggestions persists a batch of suggestions in one round trip.
func (s *Postgres) SaveSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range suggestions {
		sg := &suggestions[i]
		if sg.ID == uuid.Nil {
			sg.ID = uuid.New()
		}
		if sg.CreatedAt.IsZero() {
			sg.CreatedAt = time.Now()
		}
		batch.Queue(
			`INSERT INTO suggestions
			 (id, document_id, user_id, original_text, suggested_text, description, is_resolved, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sg.ID, sg.DocumentID, sg.UserID, sg.OriginalText, sg.SuggestedText,
			sg.Description, sg.IsResolved, sg.CreatedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() {
		if err := results.Close(); err != nil {
			s.logger.Warn("closing suggestion batch", "error", err)
		}
	}()

	for range suggestions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save suggestions: %w", err)
		}
	}
	s.logger.Debug("saved suggestions", "count", len(suggestions))
	return nil
}
