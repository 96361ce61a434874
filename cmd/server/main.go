package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"portfolio-chatter/internal/assistant"
	"portfolio-chatter/internal/auth"
	"portfolio-chatter/internal/config"
	"portfolio-chatter/internal/corpus"
	"portfolio-chatter/internal/delivery"
	"portfolio-chatter/internal/digest"
	"portfolio-chatter/internal/history"
	"portfolio-chatter/internal/llm"
	"portfolio-chatter/internal/scheduler"
	"portfolio-chatter/internal/server"
	"portfolio-chatter/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	queryLog := storage.NewQueryLog(cfg.LogDir(), cfg.Enabled())
	if cfg.Enabled() {
		log.Printf("📝 Query logging enabled: %s (email mode: %s)", queryLog.LogPath(), cfg.EmailMode())
	}

	digests := digest.New(queryLog, func(ctx context.Context) (delivery.Transport, error) {
		return delivery.FromConfig(ctx, cfg)
	}, digest.OptionsFromConfig(cfg))

	var sched *scheduler.Scheduler
	if cfg.Enabled() && cfg.EmailMode() == config.EmailModeDaily {
		hour, minute := cfg.DigestTime()
		sched = scheduler.New(queryLog, digests, hour, minute)
		if err := sched.Start(); err != nil {
			log.Printf("❌ Failed to start digest scheduler: %v", err)
			sched = nil
		}
	}

	factory := llm.NewFactory(cfg)
	client, err := factory.CreateClient(string(cfg.LLMProvider))
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	guard := auth.NewAdminGuard(cfg.AdminToken())
	if !guard.Configured() {
		log.Println("⚠️ QUERY_LOG_ADMIN_TOKEN is not set, admin routes will reject every request")
	}

	chat := assistant.New(
		client,
		corpus.NewRetriever(cfg.CorpusPath(), factory.CreateEmbedder()),
		history.NewManager(cfg.ChatHistoryTurns),
		readSystemPrompt(cfg.SystemPromptPath),
		cfg.ChatTopK,
	)

	srv := server.New(queryLog, digests, guard, chat, cfg.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("🛑 Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("❌ Server stopped: %v", err)
		}
	}

	if sched != nil {
		sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("⚠️ Server shutdown: %v", err)
	}
	digests.Wait()
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not found or unreadable at %s: %v", path, err)
		return ""
	}
	return string(data)
}
