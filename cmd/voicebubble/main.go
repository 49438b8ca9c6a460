package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mtben82-coder/voicebubble-backend/internal/cache"
	"github.com/mtben82-coder/voicebubble-backend/internal/handlers"
	"github.com/mtben82-coder/voicebubble-backend/internal/httpserver"
	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
	"github.com/mtben82-coder/voicebubble-backend/internal/metrics"
	"github.com/mtben82-coder/voicebubble-backend/internal/pipeline"
	"github.com/mtben82-coder/voicebubble-backend/internal/preset"
	"github.com/mtben82-coder/voicebubble-backend/pkg/logging"
)

type Config struct {
	Port         string
	Environment  string
	CacheBackend string // "memory" or "redis"
	RedisAddr    string
	RedisPass    string

	TranscriptionTTL time.Duration
	RewriteTTL       time.Duration

	LLMBaseURL string
	LLMAPIKey  string

	PresetsPath string
}

func LoadConfig() Config {
	return Config{
		Port:             getenv("PORT", "3000"),
		Environment:      getenv("ENV", "development"),
		CacheBackend:     getenv("CACHE_BACKEND", "redis"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPass:        os.Getenv("REDIS_PASSWORD"),
		TranscriptionTTL: getdur("TRANSCRIPTION_CACHE_TTL", cache.DefaultTranscriptionTTL),
		RewriteTTL:       getdur("REWRITE_CACHE_TTL", cache.DefaultRewriteTTL),
		LLMBaseURL:       getenv("OPENAI_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:        os.Getenv("OPENAI_API_KEY"),
		PresetsPath:      os.Getenv("PRESETS_PATH"),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("voicebubble exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.String("llm_base_url", cfg.LLMBaseURL),
		zap.Duration("transcription_ttl", cfg.TranscriptionTTL),
		zap.Duration("rewrite_ttl", cfg.RewriteTTL),
	)

	// ----- Cache backend -----
	// A missing Redis address degrades to a disabled backend rather
	// than failing startup; every request still works, just uncached.
	backend := cache.New(cache.Config{
		Driver:   cfg.CacheBackend,
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	}, logger)
	defer backend.Close()

	store := cache.NewStore(
		cache.NewLoggingBackend(backend),
		cfg.TranscriptionTTL,
		cfg.RewriteTTL,
	)

	// ----- LLM client -----
	if cfg.LLMAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Presets -----
	catalog, err := preset.Load(cfg.PresetsPath)
	if err != nil {
		return fmt.Errorf("loading presets: %w", err)
	}
	logger.Info("presets loaded", zap.Int("count", catalog.Len()))

	// ----- Pipeline + handlers -----
	orch := pipeline.New(store, llmClient, catalog)

	h := httpserver.Handlers{
		Transcribe: handlers.NewTranscribeHandler(orch),
		Rewrite:    handlers.NewRewriteHandler(orch),
		Transform:  handlers.NewTransformHandler(llmClient),
		Actions:    handlers.NewActionsHandler(llmClient),
		Health:     handlers.NewHealthHandler(backend, llmClient, cfg.Environment),
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, h)

	// ----- HTTP server -----
	// WriteTimeout stays unset: streaming rewrites hold the response
	// open for the life of the upstream completion.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("starting server",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("environment", cfg.Environment),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getdur parses key as a duration, accepting either a bare number of
// seconds ("86400") or a Go duration string ("24h"), falling back to def.
func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
