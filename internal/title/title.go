// Package title generates chat titles from the first user message.
// Generation never fails: any internal error falls back to a fixed
// default so chat creation is never blocked on the summarizer.
package title

import (
	"context"
	"strings"
	"time"

	"github.com/koopa0/quill/internal/llm"
	"github.com/koopa0/quill/internal/log"
)

const (
	// Model is the provider-side model used for title generation. Titles
	// are short and latency-sensitive, so the cheapest model serves them.
	Model = "gpt-3.5-turbo"

	// Fallback is used whenever generation fails or produces nothing.
	Fallback = "New Chat"

	// MaxLength caps the title length in runes.
	MaxLength = 80

	// inputMaxRunes bounds how much of the user message is sent out.
	inputMaxRunes = 512

	generationTimeout = 10 * time.Second
)

const systemPrompt = "Summarize the user's message as a short chat title of at most 80 characters. Do not use quotes, colons, or a trailing period. Respond with the title only."

// Generator summarizes first messages into chat titles.
type Generator struct {
	client llm.Client
	logger log.Logger
}

// NewGenerator creates a title generator.
func NewGenerator(client llm.Client, logger log.Logger) *Generator {
	return &Generator{client: client, logger: logger}
}

// Generate returns a usable title for the given first user message.
// It never returns an empty string and never fails.
func (g *Generator) Generate(ctx context.Context, userMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	if runes := []rune(userMessage); len(runes) > inputMaxRunes {
		userMessage = string(runes[:inputMaxRunes]) + "..."
	}

	generated, err := g.client.GenerateText(ctx, Model, systemPrompt, userMessage)
	if err != nil {
		g.logger.Debug("title generation failed, using fallback", "error", err)
		return Fallback
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(generated), `"'`))
	if title == "" {
		return Fallback
	}
	if runes := []rune(title); len(runes) > MaxLength {
		title = string(runes[:MaxLength-3]) + "..."
	}
	return title
}
