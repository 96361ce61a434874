package llm

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolio-chatter/internal/config"
)

func TestFactory_UnknownProvider(t *testing.T) {
	f := NewFactory(&config.Config{})
	if _, err := f.CreateClient("anthropic"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestFactory_OpenAIOptions(t *testing.T) {
	f := NewFactory(&config.Config{
		OpenAIAPIKey:         "k",
		OpenAIModel:          "gpt-4o-mini",
		OpenAIEmbeddingModel: "text-embedding-3-small",
		ChatTemperature:      0.7,
	})
	c, err := f.CreateClient("OpenAI")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oc, ok := c.(*OpenAIClient)
	if !ok || oc.model != "gpt-4o-mini" || oc.temperature != 0.7 {
		t.Fatalf("unexpected client: %#v", c)
	}
	if e, ok := f.CreateEmbedder().(*OpenAIClient); !ok || e.embeddingModel != "text-embedding-3-small" {
		t.Fatalf("unexpected embedder")
	}
}

func TestHeaderTransport_AddsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("X-Title", "Kairo")
	client := &http.Client{Transport: headerTransport{rt: http.DefaultTransport, headers: h}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if got.Get("X-Title") != "Kairo" {
		t.Fatalf("header not injected: %v", got)
	}
}
