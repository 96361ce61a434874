// Package mcpclient talks to the query log MCP server from operator tooling.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultServerPath = "./querylog-mcp-server"

// QueryLogClient клиент для MCP сервера журнала запросов
type QueryLogClient struct {
	client  *mcp.Client
	session *mcp.ClientSession
}

func NewQueryLogClient() *QueryLogClient {
	return &QueryLogClient{
		client: mcp.NewClient(&mcp.Implementation{
			Name:    "portfolio-chatter-querylog-cli",
			Version: "1.0.0",
		}, nil),
	}
}

// Connect запускает MCP сервер подпроцессом и подключается через stdio.
// QUERYLOG_MCP_SERVER_PATH overrides serverPath when serverPath is empty.
func (c *QueryLogClient) Connect(ctx context.Context, serverPath string) error {
	if serverPath == "" {
		serverPath = defaultServerPath
		if custom := os.Getenv("QUERYLOG_MCP_SERVER_PATH"); custom != "" {
			serverPath = custom
		}
	}
	log.Printf("🔗 Connecting to query log MCP server %s", serverPath)
	return c.ConnectTransport(ctx, mcp.NewCommandTransport(exec.CommandContext(ctx, serverPath)))
}

// ConnectTransport connects over an already prepared transport.
func (c *QueryLogClient) ConnectTransport(ctx context.Context, transport mcp.Transport) error {
	session, err := c.client.Connect(ctx, transport)
	if err != nil {
		return fmt.Errorf("failed to connect to query log MCP server: %w", err)
	}
	c.session = session
	return nil
}

func (c *QueryLogClient) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// ToolResult is the text and metadata a tool call returned.
type ToolResult struct {
	Text string
	Meta map[string]any
}

// Decode copies the metadata into v through its JSON form.
func (r ToolResult) Decode(v any) error {
	data, err := json.Marshal(r.Meta)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// StatusMeta mirrors the metadata of query_log_status.
type StatusMeta struct {
	Enabled   bool   `json:"enabled"`
	EmailMode string `json:"emailMode"`
	LogPath   string `json:"logPath"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"sizeBytes"`
}

// SendMeta mirrors the metadata of query_log_send.
type SendMeta struct {
	OK        bool   `json:"ok"`
	Sent      bool   `json:"sent"`
	Bytes     int    `json:"bytes"`
	Truncated bool   `json:"truncated"`
	Error     string `json:"error,omitempty"`
}

func (c *QueryLogClient) Status(ctx context.Context) (ToolResult, error) {
	return c.call(ctx, "query_log_status", map[string]any{})
}

func (c *QueryLogClient) Send(ctx context.Context) (ToolResult, error) {
	return c.call(ctx, "query_log_send", map[string]any{})
}

func (c *QueryLogClient) Tail(ctx context.Context, lines int) (ToolResult, error) {
	args := map[string]any{}
	if lines > 0 {
		args["lines"] = lines
	}
	return c.call(ctx, "query_log_tail", args)
}

func (c *QueryLogClient) call(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	if c.session == nil {
		return ToolResult{}, errors.New("query log MCP session not connected")
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return ToolResult{}, fmt.Errorf("%s: %w", name, err)
	}

	var out ToolResult
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			out.Text += tc.Text
		}
	}
	out.Meta = result.Meta
	if result.IsError {
		return out, fmt.Errorf("%s failed: %s", name, out.Text)
	}
	return out, nil
}
