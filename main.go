// notelens — YouTube lecture-notes service.
//
// Fetches a video transcript, fans out to two hosted models (streaming
// markdown notes + structured AI-tool extraction), merges the results, and
// caches them. Serves an SSE HTTP API and, optionally, an MCP server with
// process_video and video_history tools.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	ilm "github.com/anatolykoptev/notelens/internal/llm"
	"github.com/anatolykoptev/notelens/internal/notes"
	"github.com/anatolykoptev/notelens/internal/server"
	"github.com/anatolykoptev/notelens/internal/store"
	"github.com/anatolykoptev/notelens/internal/youtube"
)

var version = "dev"

type config struct {
	Port    string
	MCPPort string

	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	NotesModel         string
	ToolsModel         string
	LLMTemperature     float64
	LLMMaxTokens       int

	DatabaseURL     string
	SQLitePath      string
	RedisURL        string
	CacheTTL        time.Duration
	CacheMaxEntries int

	TranscriptTimeout time.Duration
	GenerationTimeout time.Duration
	CaptionLangs      []string

	AllowedOrigins []string
	ProcessRPS     float64
	ProcessBurst   int
}

func loadConfig() config {
	return config{
		Port:    env.Str("PORT", "8890"),
		MCPPort: env.Str("MCP_PORT", ""),

		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		NotesModel:         env.Str("NOTES_MODEL", "gemini-2.5-flash"),
		ToolsModel:         env.Str("TOOLS_MODEL", "gemini-2.5-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 8192),

		DatabaseURL:     env.Str("DATABASE_URL", ""),
		SQLitePath:      env.Str("SQLITE_PATH", filepath.Join(os.Getenv("HOME"), ".notelens", "notes.db")),
		RedisURL:        env.Str("REDIS_URL", ""),
		CacheTTL:        env.Duration("CACHE_TTL", 7*24*time.Hour),
		CacheMaxEntries: env.Int("CACHE_MAX_ENTRIES", 1000),

		TranscriptTimeout: env.Duration("TRANSCRIPT_TIMEOUT", 30*time.Second),
		GenerationTimeout: env.Duration("GENERATION_TIMEOUT", 90*time.Second),
		CaptionLangs:      env.List("CAPTION_LANGS", "en"),

		AllowedOrigins: env.List("ALLOWED_ORIGINS", "*"),
		ProcessRPS:     env.Float("PROCESS_RPS", 1),
		ProcessBurst:   env.Int("PROCESS_BURST", 3),
	}
}

func main() {
	cfg := loadConfig()

	slog.Info("starting notelens",
		slog.String("version", version),
		slog.String("port", cfg.Port),
		slog.String("notes_model", cfg.NotesModel),
		slog.String("tools_model", cfg.ToolsModel),
		slog.Duration("cache_ttl", cfg.CacheTTL),
	)

	st := openStore(cfg)
	defer st.Close()

	source := youtube.New(youtube.Config{
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		Langs: cfg.CaptionLangs,
	})

	toolsLLM := llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.ToolsModel,
		llm.WithFallbackKeys(cfg.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)

	notesClient := ilm.NewNotesClient(ilm.NotesConfig{
		BaseURL:     cfg.LLMAPIBase,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.NotesModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})

	orch := notes.NewOrchestrator(notes.OrchestratorConfig{
		Source:            source,
		Notes:             notesClient,
		Tools:             ilm.NewToolsClient(toolsLLM),
		Store:             st,
		FetchTimeout:      cfg.TranscriptTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
	})

	srv := server.New(server.Config{
		Orchestrator:   orch,
		Source:         source,
		Store:          st,
		AllowedOrigins: cfg.AllowedOrigins,
		ProcessRPS:     cfg.ProcessRPS,
		ProcessBurst:   cfg.ProcessBurst,
	})

	if cfg.MCPPort != "" {
		go runMCP(cfg.MCPPort, orch, st)
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Long WriteTimeout: SSE streams stay open for a full generation.
		WriteTimeout: 10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("shutdown incomplete", slog.Any("error", err))
		}
	}
}

// openStore picks the durable backend (Postgres when DATABASE_URL is set,
// SQLite otherwise) and fronts it with the tiered cache.
func openStore(cfg config) store.Store {
	var (
		durable store.Store
		err     error
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		durable, err = store.ConnectPostgres(ctx, cfg.DatabaseURL, cfg.CacheTTL)
		if err != nil {
			slog.Error("postgres init failed", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		durable, err = store.OpenSQLite(cfg.SQLitePath, cfg.CacheTTL)
		if err != nil {
			slog.Error("sqlite init failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	return store.NewTiered(store.TieredConfig{
		Inner:      durable,
		RedisURL:   cfg.RedisURL,
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
	})
}

// runMCP serves the MCP tools on their own port.
func runMCP(port string, orch server.Processor, st store.Store) {
	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "notelens",
		Version: version,
	}, nil)

	server.RegisterTools(mcpSrv, orch, st)
	slog.Info("mcp tools registered", slog.Int("count", 2))

	if err := mcpserver.Run(mcpSrv, mcpserver.Config{
		Name:         "notelens",
		Version:      version,
		Port:         port,
		WriteTimeout: 600 * time.Second,
		Metrics:      notes.FormatMetrics,
	}); err != nil {
		slog.Error("mcp server failed", slog.Any("error", err))
	}
}
