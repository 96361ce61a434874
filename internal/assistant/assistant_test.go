package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"portfolio-chatter/internal/corpus"
	"portfolio-chatter/internal/history"
	"portfolio-chatter/internal/llm"
)

type fakeLLM struct {
	resp llm.Response
	err  error
	got  []llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.got = msgs
	return f.resp, f.err
}

type fakeSearcher struct {
	chunks []corpus.Chunk
	err    error
	k      int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]corpus.Chunk, error) {
	f.k = k
	return f.chunks, f.err
}

func TestAnswer_BuildsPromptWithContextAndHistory(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Content: "Zentra was a fintech onboarding redesign."}}
	search := &fakeSearcher{chunks: []corpus.Chunk{{Text: "Zentra: onboarding"}, {Text: "Search: filters"}}}
	h := history.NewManager(6)
	h.AppendUser("s_1", "hi")
	h.AppendAssistant("s_1", "hello!")

	a := New(client, search, h, "You are Kairo.", 0)
	answer, err := a.Answer(context.Background(), "s_1", "What is Zentra?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer != "Zentra was a fintech onboarding redesign." {
		t.Fatalf("answer: %q", answer)
	}
	if search.k != 5 {
		t.Fatalf("default top-k should be 5, got %d", search.k)
	}

	msgs := client.got
	if len(msgs) != 4 || msgs[0].Role != "system" || msgs[1].Content != "hi" || msgs[2].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	last := msgs[3].Content
	for _, want := range []string{"Context:\nZentra: onboarding\nSearch: filters", "Question: What is Zentra?"} {
		if !strings.Contains(last, want) {
			t.Fatalf("prompt missing %q:\n%s", want, last)
		}
	}

	if got := h.Get("s_1"); len(got) != 4 || got[3].Content != answer {
		t.Fatalf("history not updated: %+v", got)
	}
}

func TestAnswer_Errors(t *testing.T) {
	h := history.NewManager(6)
	a := New(&fakeLLM{}, &fakeSearcher{err: errors.New("embeddings down")}, h, "", 3)
	if _, err := a.Answer(context.Background(), "s", "q"); err == nil {
		t.Fatalf("expected retrieval error")
	}

	a = New(&fakeLLM{err: errors.New("rate limited")}, nil, h, "", 3)
	if _, err := a.Answer(context.Background(), "s", "q"); err == nil {
		t.Fatalf("expected llm error")
	}
	if len(h.Get("s")) != 0 {
		t.Fatalf("failed exchanges must not be remembered")
	}
}
