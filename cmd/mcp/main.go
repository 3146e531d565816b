package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/config"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/knowledge"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/llm"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/mcpserver"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	email := flag.String("email", "", "Account whose todo list is served")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "Usage: mcp -email <account-email>")
		os.Exit(1)
	}

	if err := run(*email); err != nil {
		fmt.Fprintf(os.Stderr, "mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(email string) error {
	cfg := config.Load()

	// Stdout carries the protocol
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "mcp").Logger()

	ctx := context.Background()

	dataStore, err := store.Open(ctx, cfg.Store, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer dataStore.Close()

	user, err := dataStore.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no account for %s", email)
	}

	// Documents are only shared with the server through Redis
	var docs tools.DocumentSearcher
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.DocumentTTL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisStore.Close()

		// Queries must be embedded with the model the server indexed with
		var opts []knowledge.Option
		if cfg.GoogleAPIKey != "" {
			gemini, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.GoogleAPIKey, Model: cfg.ModelName})
			if err != nil {
				return fmt.Errorf("create embedder: %w", err)
			}
			opts = append(opts, knowledge.WithEmbedder(gemini.Embedder(cfg.EmbeddingModel)))
		}
		docs = knowledge.NewService(redisStore, logger, opts...).For(user.ID)
	}

	registry := tools.NewRegistry(user.ID, dataStore, docs, tools.WithLogger(logger))

	logger.Info().Int64("user_id", user.ID).Msg("serving todo tools on stdio")
	return server.ServeStdio(mcpserver.New(registry, Version))
}
