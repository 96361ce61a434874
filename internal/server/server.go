// Package server exposes the chat endpoint and the query log admin routes.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"portfolio-chatter/internal/auth"
	"portfolio-chatter/internal/config"
	"portfolio-chatter/internal/digest"
	"portfolio-chatter/internal/storage"
)

// Answerer produces the assistant reply for one question.
type Answerer interface {
	Answer(ctx context.Context, sessionKey, message string) (string, error)
}

// Digests is the part of the digest sender the HTTP layer triggers.
type Digests interface {
	Options() digest.Options
	SendManual(ctx context.Context) (digest.Result, error)
	NotifyImmediate(ctx context.Context, sessionKeyHint string)
}

type Server struct {
	queryLog  *storage.QueryLog
	digests   Digests
	guard     *auth.AdminGuard
	assistant Answerer
	server    *http.Server
	port      int
}

func New(queryLog *storage.QueryLog, digests Digests, guard *auth.AdminGuard, assistant Answerer, port int) *Server {
	return &Server{
		queryLog:  queryLog,
		digests:   digests,
		guard:     guard,
		assistant: assistant,
		port:      port,
	}
}

// Handler builds the routing tree. Admin routes sit behind the token guard.
func (s *Server) Handler() http.Handler {
	admin := http.NewServeMux()
	admin.HandleFunc("/admin/query-logs/status", s.handleStatus)
	admin.HandleFunc("/admin/query-logs/download", s.handleDownload)
	admin.HandleFunc("/admin/query-logs/send", s.handleSend)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.Handle("/admin/", s.guard.Middleware(admin))

	return withCORS(mux)
}

// Start запускает HTTP сервер и блокируется до его остановки
func (s *Server) Start() error {
	// WriteTimeout covers awaited digests and slow LLM answers
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🌐 Server listening on http://localhost:%d", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message is required"})
		return
	}

	sessionKey := SessionKey(r, req.SessionID)
	s.queryLog.Append(storage.EntryFromRequest(r, message, sessionKey, strings.TrimSpace(req.SessionID)))
	s.digests.NotifyImmediate(r.Context(), sessionKey)

	answer, err := s.assistant.Answer(r.Context(), sessionKey, message)
	if err != nil {
		log.Printf("❌ /ask failed for %s: %v", sessionKey, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Something went wrong"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// SessionKey derives a stable pseudonymous key from the client session id,
// or from the client address and user agent when no id was sent.
func SessionKey(r *http.Request, sessionID string) string {
	seed := strings.TrimSpace(sessionID)
	if seed == "" {
		seed = storage.ClientIP(r) + "|" + r.UserAgent()
	}
	sum := sha256.Sum256([]byte(seed))
	return "s_" + hex.EncodeToString(sum[:])[:16]
}

type statusResponse struct {
	Enabled   bool             `json:"enabled"`
	EmailMode config.EmailMode `json:"emailMode"`
	LogPath   string           `json:"logPath"`
	Exists    bool             `json:"exists"`
	SizeBytes int64            `json:"sizeBytes"`
	State     storage.State    `json:"state"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	exists, size, err := s.queryLog.Stat()
	if err != nil {
		log.Printf("❌ Query log status failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Enabled:   s.queryLog.Enabled(),
		EmailMode: s.digests.Options().Mode,
		LogPath:   s.queryLog.LogPath(),
		Exists:    exists,
		SizeBytes: size,
		State:     s.queryLog.ReadState(),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	f, err := s.queryLog.Open()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("❌ Failed opening query log for download: %v", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="`+storage.LogFileName+`"`)
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("⚠️ Query log download interrupted: %v", err)
	}
}

type sendResponse struct {
	OK bool `json:"ok"`
	digest.Result
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	res, err := s.digests.SendManual(r.Context())
	if err != nil {
		log.Printf("❌ Manual query log send failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{OK: true, Result: res})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}
