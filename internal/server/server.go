// Package server exposes the processing pipeline over HTTP: an SSE endpoint
// for live runs, JSON endpoints for history and presets, plus health and
// metrics. MCP tool registration lives in mcp.go.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/notelens/internal/notes"
	"github.com/anatolykoptev/notelens/internal/store"
)

// Processor runs the pipeline for one video. Implemented by
// notes.Orchestrator; faked in tests.
type Processor interface {
	Process(ctx context.Context, videoID string, force bool) <-chan notes.Event
}

// Server holds the HTTP handler dependencies.
type Server struct {
	orch    Processor
	source  notes.TranscriptSource
	store   store.Store
	origins map[string]bool
	anyOrig bool
	limiter *rate.Limiter
}

// Config wires a Server. ProcessRPS <= 0 disables throttling on the
// generation endpoint.
type Config struct {
	Orchestrator   Processor
	Source         notes.TranscriptSource
	Store          store.Store
	AllowedOrigins []string
	ProcessRPS     float64
	ProcessBurst   int
}

// New builds a Server.
func New(cfg Config) *Server {
	s := &Server{
		orch:    cfg.Orchestrator,
		source:  cfg.Source,
		store:   cfg.Store,
		origins: make(map[string]bool, len(cfg.AllowedOrigins)),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			s.anyOrig = true
			continue
		}
		s.origins[o] = true
	}
	if cfg.ProcessRPS > 0 {
		burst := cfg.ProcessBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ProcessRPS), burst)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{
			"service": "notelens",
			"status":  "ok",
		}})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(notes.FormatMetrics()))
	})
	mux.HandleFunc("GET /api/process", s.handleProcess)
	mux.HandleFunc("POST /api/extract", s.handleExtract)
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("GET /api/history/{videoID}", s.handleHistoryDetail)
	mux.HandleFunc("DELETE /api/history/{videoID}", s.handleHistoryDelete)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	return s.cors(mux)
}

// cors applies the configured origin allowlist and answers preflights.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (s.anyOrig || s.origins[origin]) {
			if s.anyOrig {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiResponse is the JSON envelope for the non-streaming endpoints.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response encode failed", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, apiResponse{Success: false, Error: msg})
}
