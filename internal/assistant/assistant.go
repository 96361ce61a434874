// Package assistant answers visitor questions from retrieved case-study context.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"portfolio-chatter/internal/corpus"
	"portfolio-chatter/internal/history"
	"portfolio-chatter/internal/llm"
)

// Searcher returns the chunks most relevant to a question.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]corpus.Chunk, error)
}

type Assistant struct {
	client       llm.Client
	searcher     Searcher
	history      *history.Manager
	systemPrompt string
	topK         int
}

func New(client llm.Client, searcher Searcher, h *history.Manager, systemPrompt string, topK int) *Assistant {
	if topK <= 0 {
		topK = 5
	}
	return &Assistant{client: client, searcher: searcher, history: h, systemPrompt: systemPrompt, topK: topK}
}

// Answer retrieves context for message, asks the model and remembers the exchange.
func (a *Assistant) Answer(ctx context.Context, sessionKey, message string) (string, error) {
	var chunks []corpus.Chunk
	if a.searcher != nil {
		found, err := a.searcher.Search(ctx, message, a.topK)
		if err != nil {
			return "", fmt.Errorf("retrieve context: %w", err)
		}
		chunks = found
	}

	resp, err := a.client.Generate(ctx, a.buildMessages(sessionKey, message, chunks))
	if err != nil {
		return "", err
	}

	if a.history != nil {
		a.history.AppendUser(sessionKey, message)
		a.history.AppendAssistant(sessionKey, resp.Content)
	}
	return resp.Content, nil
}

func (a *Assistant) buildMessages(sessionKey, message string, chunks []corpus.Chunk) []llm.Message {
	var msgs []llm.Message
	if strings.TrimSpace(a.systemPrompt) != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: a.systemPrompt})
	}
	if a.history != nil {
		msgs = append(msgs, a.history.Get(sessionKey)...)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userPrompt(message, chunks)})
	return msgs
}

func userPrompt(message string, chunks []corpus.Chunk) string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	return fmt.Sprintf("Answer in a friendly portfolio style. Ask if they wanna know more\n\nContext:\n%s\n\nQuestion: %s Always pull project details from the case studies above if relevent",
		strings.Join(texts, "\n"), message)
}
