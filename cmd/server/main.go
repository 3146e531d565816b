package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/api"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/api/middleware"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/auth"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/config"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/handlers"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/knowledge"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/llm"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/session"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		logger = logger.Level(level)
	}

	ctx := context.Background()

	// Open the task store
	dataStore, err := store.Open(ctx, cfg.Store, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Store).Msg("store init failed")
	}
	defer dataStore.Close()
	logger.Info().Str("store", cfg.Store).Msg("task store ready")

	// Initialize Redis store; documents stay in memory without it
	var redisStore *store.RedisStore
	var index knowledge.Index = knowledge.NewMemoryIndex()
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL, cfg.DocumentTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		index = redisStore
		logger.Info().Msg("connected to Redis")
	}

	// Initialize the model. Without a key the server still serves HTTP and
	// chat connections report the init failure.
	var model llm.Model
	var modelName string
	var docOpts []knowledge.Option
	if cfg.GoogleAPIKey != "" {
		gemini, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:      cfg.GoogleAPIKey,
			Model:       cfg.ModelName,
			Temperature: cfg.ModelTemperature,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("model init failed")
		}
		model = gemini
		modelName = gemini.Name()
		docOpts = append(docOpts, knowledge.WithEmbedder(gemini.Embedder(cfg.EmbeddingModel)))
	} else {
		logger.Warn().Msg("GOOGLE_API_KEY not set; chat is disabled and documents are searched by words")
	}
	docs := knowledge.NewService(index, logger, docOpts...)

	tokens := auth.NewTokens(cfg.SecretKey, cfg.TokenTTL)
	authenticator := auth.NewAuthenticator(tokens, dataStore)

	sessions := session.NewHandler(authenticator, session.AgentDeps{
		Model:         model,
		Tasks:         dataStore,
		Knowledge:     docs,
		ReadGuard:     cfg.ReadGuard,
		MaxModelCalls: cfg.MaxModelCalls,
		Logger:        logger.With().Str("component", "agent").Logger(),
	}.Factory(), logger.With().Str("component", "session").Logger(),
		session.WithOriginPatterns(session.OriginHosts(cfg.AllowedOrigins)...),
	)

	// Create router
	router := api.NewRouter(api.Options{
		Logger: logger,
		Handler: handlers.NewHandler(handlers.Deps{
			Store:     dataStore,
			Redis:     redisStore,
			Tokens:    tokens,
			Knowledge: docs,
			ModelName: modelName,
			Logger:    logger,
		}),
		Auth:     authenticator,
		Sessions: sessions,
		Redis:    redisStore,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// Chat connections are hijacked, so Shutdown does not wait for them;
	// cancelling the base context ends their sessions.
	baseCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()

	// Create server. No WriteTimeout: chat connections are long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelSessions)

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting todo agent server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
