package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Morwran/yagpt"
)

func TestYandexClient_GenerateMapsConversation(t *testing.T) {
	var got []yagpt.Message
	c := &YandexClient{complete: func(ctx context.Context, msgs []yagpt.Message) (Response, error) {
		got = msgs
		return Response{Content: "Привет!", TotalTokens: 7}, nil
	}}

	resp, err := c.Generate(context.Background(), []Message{
		{Role: "system", Content: "You are Kairo."},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "   "},
		{Role: "Assistant", Content: "hello"},
		{Role: "tool", Content: "result"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "Привет!" || resp.TotalTokens != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(got) != len(wantRoles) {
		t.Fatalf("want %d messages, got %+v", len(wantRoles), got)
	}
	for i, role := range wantRoles {
		if got[i].Role != role {
			t.Fatalf("message %d: want role %s, got %s", i, role, got[i].Role)
		}
	}
}

func TestYandexClient_GenerateErrors(t *testing.T) {
	calls := 0
	c := &YandexClient{complete: func(ctx context.Context, msgs []yagpt.Message) (Response, error) {
		calls++
		return Response{}, errors.New("quota exceeded")
	}}

	if _, err := c.Generate(context.Background(), []Message{{Role: "user", Content: " "}}); err == nil || calls != 0 {
		t.Fatalf("empty conversation must fail before calling the API: err=%v calls=%d", err, calls)
	}

	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
}
