package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/config"
	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/kv"
	kvRedis "github.com/warehouse-ai/ragcore/internal/kv/redis"
	logpkg "github.com/warehouse-ai/ragcore/internal/logger"
	"github.com/warehouse-ai/ragcore/internal/metrics"
	"github.com/warehouse-ai/ragcore/internal/repository/embcache"
	"github.com/warehouse-ai/ragcore/internal/transport/httpapi"
	"github.com/warehouse-ai/ragcore/internal/transport/ollama"
	openaiEmb "github.com/warehouse-ai/ragcore/internal/transport/openai"
	"github.com/warehouse-ai/ragcore/internal/transport/qdrant"
	answeruc "github.com/warehouse-ai/ragcore/internal/usecase/answer"
	exportuc "github.com/warehouse-ai/ragcore/internal/usecase/export"
	ingestuc "github.com/warehouse-ai/ragcore/internal/usecase/ingest"
	statsuc "github.com/warehouse-ai/ragcore/internal/usecase/stats"
	"github.com/warehouse-ai/ragcore/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragcore API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("ollama_base_url", cfg.Ollama.BaseURL),
		zap.String("qdrant_base_url", cfg.Qdrant.BaseURL),
		zap.String("collection", cfg.Qdrant.Collection),
	)

	// Register upstream metrics explicitly (no init())
	metrics.RegisterUpstreamMetrics()

	ollamaClient := ollama.NewClient(&ollama.Config{
		BaseURL:      cfg.Ollama.BaseURL,
		EmbedModel:   cfg.Ollama.EmbedModel,
		GenModel:     cfg.Ollama.GenModel,
		EmbedTimeout: time.Duration(cfg.Ollama.EmbedTimeoutSec) * time.Second,
		GenTimeout:   time.Duration(cfg.Ollama.GenTimeoutSec) * time.Second,
		Temperature:  cfg.Ollama.Temperature,
		TopP:         cfg.Ollama.TopP,
		NumPredict:   cfg.Ollama.NumPredict,
		Logger:       logger,
	})

	qdrantClient := qdrant.NewClient(&qdrant.Config{
		BaseURL:    cfg.Qdrant.BaseURL,
		Collection: cfg.Qdrant.Collection,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
		VectorSize: cfg.Qdrant.VectorSize,
		Distance:   cfg.Qdrant.Distance,
		Logger:     logger,
	})

	// Optional embedding cache — a missing cache never blocks startup.
	var store kv.Store
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err := kvRedis.NewStore(kvRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer redisStore.Close()

		readyCtx := context.Background()
		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := redisStore.WaitForReady(readyCtx, readiness); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedder := buildEmbedder(cfg, ollamaClient, store, logger)
	embedModel := defaultEmbedModel(cfg)

	statsSvc := statsuc.New(qdrantClient, logger)
	answerSvc := answeruc.New(embedder, qdrantClient, ollamaClient, logger).
		WithAggregator(statsSvc).
		WithEmbedModel(embedModel)
	ingestSvc := ingestuc.New(embedder, qdrantClient, cfg.Qdrant.Collection, embedModel, logger)

	var exportSvc *exportuc.Service
	if cfg.Export.SourceURL != "" {
		exportSvc = exportuc.New(&exportuc.Config{
			SourceURL:      cfg.Export.SourceURL,
			Timeout:        time.Duration(cfg.Export.TimeoutSec) * time.Second,
			MaxPromptChars: cfg.Export.MaxPromptChars,
			Logger:         logger,
		})
	}

	server := httpapi.NewServer(answerSvc, ingestSvc, statsSvc, exportSvc, qdrantClient, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// defaultEmbedModel picks the embedding model matching the active
// provider. Resolving it here keeps cache keys and ingest defaults
// consistent with whatever embedder buildEmbedder wires.
func defaultEmbedModel(cfg config.Config) string {
	if cfg.Embedding.Provider == "openai" {
		return cfg.Embedding.OpenAI.Model
	}
	return cfg.Ollama.EmbedModel
}

// buildEmbedder assembles the embedder chain: provider -> cache.
func buildEmbedder(
	cfg config.Config,
	ollamaClient *ollama.Client,
	store kv.Store,
	logger *zap.Logger,
) domain.Embedder {
	var base domain.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.OpenAI.Dimensions,
			Logger:     logger,
		})
	default:
		base = ollamaClient
	}
	logger.Info("Embedder created", zap.String("provider", cfg.Embedding.Provider))

	if store == nil {
		return base
	}
	return embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
