package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"portfolio-chatter/internal/config"
	"portfolio-chatter/internal/delivery"
	"portfolio-chatter/internal/digest"
	"portfolio-chatter/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	queryLog := storage.NewQueryLog(cfg.LogDir(), cfg.Enabled())
	digests := digest.New(queryLog, func(ctx context.Context) (delivery.Transport, error) {
		return delivery.FromConfig(ctx, cfg)
	}, digest.OptionsFromConfig(cfg))
	tools := NewQueryLogTools(queryLog, digests)

	log.Printf("🚀 Starting query log MCP Server (%s)", queryLog.Dir())

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "portfolio-chatter-querylog-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_log_status",
		Description: "Reports whether query logging is enabled, the digest mode, log size and the delivery watermark",
	}, tools.Status)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_log_send",
		Description: "Emails everything logged since the last delivered digest",
	}, tools.Send)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_log_tail",
		Description: "Returns the most recent logged visitor queries",
	}, tools.Tail)

	log.Printf("📋 Registered query log MCP tools: query_log_status, query_log_send, query_log_tail")
	log.Printf("🔗 Starting query log MCP server on stdin/stdout...")

	transport := mcp.NewStdioTransport()
	if err := server.Run(context.Background(), transport); err != nil {
		log.Fatalf("❌ Query log MCP Server failed: %v", err)
	}
}
