// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jeranaias/fireside/internal/chat"
	"github.com/jeranaias/fireside/internal/cloud"
	"github.com/jeranaias/fireside/internal/config"
	"github.com/jeranaias/fireside/internal/conversation"
	"github.com/jeranaias/fireside/internal/export"
)

// StatusClientClosedRequest is written when the client disconnects mid-turn.
const StatusClientClosedRequest = 499

// MaxRequestBodySize caps the size of a POST /chat body.
const MaxRequestBodySize = 1 << 20

// Turner runs one chat turn.
type Turner interface {
	HandleTurn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
}

// History is the read side of the conversation store.
type History interface {
	List(ctx context.Context) []conversation.Summary
	Turns(ctx context.Context, id string) ([]conversation.Turn, bool)
}

// Info is reported by GET /health.
type Info struct {
	Version        string
	StorageBackend string
	ModelProvider  string
}

// Server is the HTTP front end.
type Server struct {
	cfg     config.ServerConfig
	turns   Turner
	history History
	info    Info

	router  *http.ServeMux
	limiter *RateLimiter
	started time.Time

	mu     sync.Mutex
	server *http.Server
}

// New creates a server. Call Start to listen, or use Handler directly.
func New(cfg config.ServerConfig, turns Turner, history History, info Info) *Server {
	s := &Server{
		cfg:     cfg,
		turns:   turns,
		history: history,
		info:    info,
		router:  http.NewServeMux(),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /chat", s.handleChat)
	s.router.HandleFunc("GET /conversations", s.handleListConversations)
	s.router.HandleFunc("GET /conversations/{id}", s.handleGetConversation)
	s.router.HandleFunc("GET /conversations/{id}/export", s.handleExportConversation)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /hello", s.handleHello)

	s.router.HandleFunc("GET /{$}", s.handleIndex)
	static := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	s.router.Handle("GET /static/", static)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []Middleware{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
	}
	if s.cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter))
	}
	middlewares = append(middlewares, CORSMiddleware(NewCORSConfig(s.cfg.CORSOrigins)))
	return Chain(middlewares...)(s.router)
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start listens until Shutdown is called. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = hs
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s version=%s storage=%s provider=%s",
		ln.Addr(), s.info.Version, s.info.StorageBackend, s.info.ModelProvider)
	return hs.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()

	s.mu.Lock()
	hs := s.server
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return hs.Shutdown(ctx)
}

// ============================================================================
// Handlers
// ============================================================================

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Prompt           string          `json:"prompt"`
	ConversationID   string          `json:"conversationId,omitempty"`
	SettingsOverride *cloud.Settings `json:"settingsOverride,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		log.Printf("CHAT_BAD_JSON | ip=%s error=%v", GetClientIP(r), err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.cfg.MaxPromptChars > 0 && utf8.RuneCountInString(req.Prompt) > s.cfg.MaxPromptChars {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("prompt exceeds %d characters", s.cfg.MaxPromptChars))
		return
	}

	result, err := s.turns.HandleTurn(r.Context(), chat.TurnRequest{
		ConversationID: req.ConversationID,
		Prompt:         req.Prompt,
		Settings:       req.SettingsOverride,
	})
	if err != nil {
		// The model and store report a dropped client as their own failures.
		if r.Context().Err() != nil {
			log.Printf("CHAT_CANCELED | ip=%s error=%v", GetClientIP(r), err)
			w.WriteHeader(StatusClientClosedRequest)
			return
		}
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	var modelErr *chat.ModelError
	var storageErr *chat.StorageError

	switch {
	case errors.Is(err, chat.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &modelErr):
		writeError(w, http.StatusInternalServerError, modelErr.Detail)
	case errors.As(err, &storageErr):
		writeError(w, http.StatusInternalServerError, "the reply could not be saved")
	default:
		log.Printf("CHAT_ERROR | error=%v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list := s.history.List(r.Context())
	if list == nil {
		list = []conversation.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := conversation.NormalizeID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	turns, ok := s.history.Turns(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

// handleExportConversation returns the conversation as a download.
// ?format= selects markdown (default), json or text.
func (s *Server) handleExportConversation(w http.ResponseWriter, r *http.Request) {
	id, err := conversation.NormalizeID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exporter, err := export.ForFormat(r.URL.Query().Get("format"), export.DefaultOptions())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	turns, ok := s.history.Turns(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	doc := export.NewDocument(id, turns)
	content, err := exporter.Export(doc)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	filename := export.Filename(doc, exporter, time.Now())
	w.Header().Set("Content-Type", exporter.MimeType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	StorageBackend string `json:"storage_backend"`
	ModelProvider  string `json:"model_provider"`
	UptimeSecs     int64  `json:"uptime_secs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Version:        s.info.Version,
		StorageBackend: s.info.StorageBackend,
		ModelProvider:  s.info.ModelProvider,
		UptimeSecs:     int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello from fireside!"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.cfg.StaticDir, "index.html")
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "index.html not found"})
		return
	}
	http.ServeFile(w, r, path)
}

// ============================================================================
// Helpers
// ============================================================================

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the message and HTTP status.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_ENCODE_ERROR | error=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Message: message, Code: status}})
}
