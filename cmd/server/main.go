package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Pimiscool14/WebChat/internal/api"
	"github.com/Pimiscool14/WebChat/internal/auth"
	"github.com/Pimiscool14/WebChat/internal/chat"
	"github.com/Pimiscool14/WebChat/internal/config"
	"github.com/Pimiscool14/WebChat/internal/friends"
	"github.com/Pimiscool14/WebChat/internal/handlers"
	"github.com/Pimiscool14/WebChat/internal/presence"
	"github.com/Pimiscool14/WebChat/internal/store"
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

	ctx := context.Background()

	// SQLite is the single-file default for both stores; Postgres and Redis
	// take over the user and conversation stores when configured.
	sqlite, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("sqlite open failed")
	}
	defer sqlite.Close()

	var users store.UserStore = sqlite
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pg.Close()
		users = pg
		logger.Info().Msg("user store: PostgreSQL")
	}

	var conversations store.ConversationStore = sqlite
	if cfg.RedisURL != "" {
		rds, err := store.NewRedisConversationStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rds.Close()
		conversations = rds
		logger.Info().Msg("conversation store: Redis")
	}

	// Wire the core
	registry := presence.NewRegistry()
	graph := friends.NewGraph(users, registry, logger)
	chatSvc := chat.NewService(conversations, graph, registry, logger)
	authSvc := auth.NewService(users)

	h := handlers.NewHandler(users, conversations, authSvc, chatSvc, graph, registry, logger)
	router := api.NewRouter(cfg, logger, h)

	// No WriteTimeout: long-lived WebSocket sessions run over this server.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting WebChat server")

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
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
