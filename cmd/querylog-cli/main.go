package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"portfolio-chatter/internal/mcpclient"
)

func main() {
	serverPath := flag.String("server", "", "path to the querylog-mcp-server binary")
	lines := flag.Int("lines", 20, "entries to show for tail")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: querylog-cli [flags] status|send|tail\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcpclient.NewQueryLogClient()
	if err := client.Connect(ctx, *serverPath); err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		fmt.Println("💡 Build the server first: go build -o querylog-mcp-server ./cmd/querylog-mcp-server")
		os.Exit(1)
	}
	defer client.Close()

	var (
		res mcpclient.ToolResult
		err error
	)
	switch flag.Arg(0) {
	case "status":
		res, err = client.Status(ctx)
	case "send":
		res, err = client.Send(ctx)
	case "tail":
		res, err = client.Tail(ctx, *lines)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Println(res.Text)
}
