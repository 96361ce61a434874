package main

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"portfolio-chatter/internal/analytics"
	"portfolio-chatter/internal/config"
	"portfolio-chatter/internal/digest"
	"portfolio-chatter/internal/storage"
)

const (
	defaultTailLines = 20
	maxTailLines     = 200
)

// tail reads at most this many bytes from the end of the log
const tailWindowBytes = 256 << 10

// StatusParams параметры для query_log_status (аргументов нет)
type StatusParams struct{}

// SendParams параметры для query_log_send (аргументов нет)
type SendParams struct{}

// TailParams параметры для query_log_tail
type TailParams struct {
	Lines int `json:"lines,omitempty" mcp:"number of most recent entries to return (default: 20, max: 200)"`
}

// QueryLogTools обслуживает MCP инструменты журнала запросов
type QueryLogTools struct {
	log     *storage.QueryLog
	digests *digest.Sender
	mode    config.EmailMode
}

func NewQueryLogTools(l *storage.QueryLog, d *digest.Sender) *QueryLogTools {
	return &QueryLogTools{log: l, digests: d, mode: d.Options().Mode}
}

func (t *QueryLogTools) Status(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[StatusParams]) (*mcp.CallToolResultFor[any], error) {
	exists, size, err := t.log.Stat()
	if err != nil {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("❌ Query log status failed: %v", err)}},
		}, nil
	}
	state := t.log.ReadState()

	watermark := "none"
	if state.LastEmailedByte != nil {
		watermark = fmt.Sprintf("%d", *state.LastEmailedByte)
	}
	daily := state.LastDailySentYmd
	if daily == "" {
		daily = "never"
	}

	text := fmt.Sprintf("📊 Query log status\nEnabled: %v\nEmail mode: %s\nPath: %s\nExists: %v\nSize: %d bytes\nLast emailed byte: %s\nLast daily digest: %s",
		t.log.Enabled(), t.mode, t.log.LogPath(), exists, size, watermark, daily)

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		Meta: map[string]interface{}{
			"enabled":   t.log.Enabled(),
			"emailMode": t.mode,
			"logPath":   t.log.LogPath(),
			"exists":    exists,
			"sizeBytes": size,
			"state":     state,
		},
	}, nil
}

func (t *QueryLogTools) Send(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[SendParams]) (*mcp.CallToolResultFor[any], error) {
	log.Printf("📬 MCP: manual query log send requested")

	res, err := t.digests.SendManual(ctx)
	if err != nil {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("❌ Query log send failed: %v", err)}},
			Meta:    map[string]interface{}{"ok": false, "error": err.Error()},
		}, nil
	}

	text := "📭 Nothing new to send"
	if res.Sent {
		text = fmt.Sprintf("✅ Sent %d bytes", res.Bytes)
		if res.Truncated {
			text += " (truncated to the most recent entries)"
		}
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		Meta: map[string]interface{}{
			"ok":        true,
			"sent":      res.Sent,
			"bytes":     res.Bytes,
			"truncated": res.Truncated,
		},
	}, nil
}

// Tail returns the most recent raw entries together with a short summary.
func (t *QueryLogTools) Tail(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[TailParams]) (*mcp.CallToolResultFor[any], error) {
	n := params.Arguments.Lines
	if n <= 0 {
		n = defaultTailLines
	}
	if n > maxTailLines {
		n = maxTailLines
	}

	exists, size, err := t.log.Stat()
	if err != nil {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("❌ Failed reading query log: %v", err)}},
		}, nil
	}
	if !exists || size == 0 {
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: "📭 Query log is empty"}},
			Meta:    map[string]interface{}{"lines": 0},
		}, nil
	}

	start := max(0, size-tailWindowBytes)
	data, err := t.log.ReadRange(start, size)
	if err != nil {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("❌ Failed reading query log: %v", err)}},
		}, nil
	}
	lines := lastLines(data, n, start > 0)
	tail := bytes.Join(lines, []byte("\n"))
	stats := analytics.AnalyzeWindow(tail)

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("🧾 Last %d entries\n%s\n\n%s", len(lines), stats.Summary(), tail)}},
		Meta: map[string]interface{}{
			"lines":          len(lines),
			"uniqueSessions": stats.UniqueSessions,
		},
	}, nil
}

// lastLines returns up to n trailing non-empty lines. With partialHead the first
// segment is assumed to be cut mid-entry and is skipped.
func lastLines(data []byte, n int, partialHead bool) [][]byte {
	all := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	if partialHead && len(all) > 0 {
		all = all[1:]
	}
	var out [][]byte
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if len(bytes.TrimSpace(all[i])) == 0 {
			continue
		}
		out = append(out, all[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
