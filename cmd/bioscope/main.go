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

	"github.com/kailas-cloud/bioscope/internal/config"
	dbRedis "github.com/kailas-cloud/bioscope/internal/db/redis"
	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/domain/chunk"
	logpkg "github.com/kailas-cloud/bioscope/internal/logger"
	"github.com/kailas-cloud/bioscope/internal/metrics"
	"github.com/kailas-cloud/bioscope/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/bioscope/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/bioscope/internal/transport/openai"
	pdfTransport "github.com/kailas-cloud/bioscope/internal/transport/pdf"
	analyzeuc "github.com/kailas-cloud/bioscope/internal/usecase/analyze"
	answeruc "github.com/kailas-cloud/bioscope/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/bioscope/internal/usecase/embedding"
	extractuc "github.com/kailas-cloud/bioscope/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/bioscope/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/bioscope/internal/usecase/indexing"
	retrievaluc "github.com/kailas-cloud/bioscope/internal/usecase/retrieval"
	sessionuc "github.com/kailas-cloud/bioscope/internal/usecase/session"
	"github.com/kailas-cloud/bioscope/internal/version"
)

const evictionInterval = time.Minute

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:    cfg.Logging.Level,
		Version:  version.Version,
		Sampling: cfg.Logging.Sampling,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting BioScope API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openaiTransport.NewClient(openaiTransport.ClientConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	// Optional embedding cache
	var cache *dbRedis.Store
	if cfg.Cache.Enabled {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Cache.Addrs,
			Password:   cfg.Cache.Password,
			ClientName: "bioscope-embcache",
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()

		if err := cache.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	baseEmbedder := openaiTransport.NewEmbedder(client, openaiTransport.EmbedderConfig{
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(baseEmbedder, cfg, cfg.Embedding.DocumentInstruction, cache, logger)
	queryEmbedder := buildEmbedder(baseEmbedder, cfg, cfg.Embedding.QueryInstruction, cache, logger)

	generator := openaiTransport.NewGenerator(client, cfg.Generation.Model, logger)

	// Use case services
	policy, err := extractuc.ParsePolicy(cfg.RAG.ExtractionPolicy)
	if err != nil {
		logger.Fatal("Invalid extraction policy", zap.Error(err))
	}
	splitter, err := chunk.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunking settings", zap.Error(err))
	}

	extractSvc := extractuc.New(pdfTransport.Opener{}).WithPolicy(policy)
	indexSvc := indexinguc.New(docEmbedder)
	retrievalSvc := retrievaluc.New(queryEmbedder).WithTopK(cfg.RAG.TopK)
	answerSvc := answeruc.New(generator).WithTemperature(cfg.Generation.Temperature)

	sessionSvc := sessionuc.New(extractSvc, splitter, indexSvc, retrievalSvc, answerSvc).
		WithLimits(cfg.Session.MaxSessions, time.Duration(cfg.Session.IdleTTLSec)*time.Second)
	analyzeSvc := analyzeuc.New(generator).
		WithSystemInstruction(cfg.Generation.SystemInstruction).
		WithTemperature(*cfg.Generation.ImageTemperature)

	healthSvc := healthuc.New(baseEmbedder, generator)
	if cache != nil {
		healthSvc.WithCache(cache)
	}

	go sessionSvc.Run(logpkg.ContextWithLogger(ctx, logger), evictionInterval)

	logger.Info("Pipeline ready",
		zap.Int("chunk_size", splitter.Size()),
		zap.Int("chunk_overlap", splitter.Overlap()),
		zap.Int("top_k", retrievalSvc.TopK()),
		zap.String("extraction_policy", string(extractSvc.Policy())),
	)

	// Create chi server
	server := chiTransport.NewServer(sessionSvc, analyzeSvc, healthSvc).
		WithMaxUploadBytes(int64(cfg.HTTP.MaxUploadMB) << 20)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	chiTransport.Handler(server, r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	cfg config.Config,
	instruction string,
	cache *dbRedis.Store,
	logger *zap.Logger,
) domain.Embedder {
	var embedder = base
	if cache != nil {
		embedder = embcache.New(
			base, cache, time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger,
		).WithDimensions(cfg.Embedding.Dimensions)
	}

	// Instrumented (sub-batching + request usage)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, logger).
		WithBatchSize(cfg.Embedding.BatchSize)

	// Instruction prefix is outermost so the cache key includes it
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
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
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
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

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if session := rctx.URLParam("session"); session != "" {
					fields = append(fields, zap.String("session", session))
				}
			}
			// Canonical log line, one per request
			reqLogger.Info("http_request", fields...)
		})
	}
}
