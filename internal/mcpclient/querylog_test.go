package mcpclient

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type noArgs struct{}

type tailArgs struct {
	Lines int `json:"lines,omitempty"`
}

func connectStub(t *testing.T, failSend bool) *QueryLogClient {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "stub", Version: "0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "query_log_status"}, func(ctx context.Context, s *mcp.ServerSession, p *mcp.CallToolParamsFor[noArgs]) (*mcp.CallToolResultFor[any], error) {
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: "status ok"}},
			Meta:    map[string]interface{}{"enabled": true, "emailMode": "daily", "sizeBytes": 42},
		}, nil
	})
	mcp.AddTool(server, &mcp.Tool{Name: "query_log_send"}, func(ctx context.Context, s *mcp.ServerSession, p *mcp.CallToolParamsFor[noArgs]) (*mcp.CallToolResultFor[any], error) {
		if failSend {
			return &mcp.CallToolResultFor[any]{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: "smtp down"}},
			}, nil
		}
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: "sent"}},
			Meta:    map[string]interface{}{"ok": true, "sent": true, "bytes": 10},
		}, nil
	})
	mcp.AddTool(server, &mcp.Tool{Name: "query_log_tail"}, func(ctx context.Context, s *mcp.ServerSession, p *mcp.CallToolParamsFor[tailArgs]) (*mcp.CallToolResultFor[any], error) {
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: strings.Repeat("x", p.Arguments.Lines)}},
		}, nil
	})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	c := NewQueryLogClient()
	if err := c.ConnectTransport(ctx, clientTransport); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestQueryLogClient_StatusDecodesMeta(t *testing.T) {
	c := connectStub(t, false)
	res, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Text != "status ok" {
		t.Fatalf("text: %q", res.Text)
	}
	var meta StatusMeta
	if err := res.Decode(&meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !meta.Enabled || meta.EmailMode != "daily" || meta.SizeBytes != 42 {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestQueryLogClient_SendAndTail(t *testing.T) {
	c := connectStub(t, false)
	res, err := c.Send(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var meta SendMeta
	if err := res.Decode(&meta); err != nil || !meta.OK || !meta.Sent || meta.Bytes != 10 {
		t.Fatalf("send meta: %+v %v", meta, err)
	}

	res, err = c.Tail(context.Background(), 3)
	if err != nil || res.Text != "xxx" {
		t.Fatalf("tail: %q %v", res.Text, err)
	}
}

func TestQueryLogClient_ToolErrorSurfaces(t *testing.T) {
	c := connectStub(t, true)
	if _, err := c.Send(context.Background()); err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected tool error, got %v", err)
	}
}

func TestQueryLogClient_NotConnected(t *testing.T) {
	if _, err := NewQueryLogClient().Status(context.Background()); err == nil {
		t.Fatalf("expected error without a session")
	}
}
