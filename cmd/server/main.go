package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v5"

	converseroot "github.com/soft-kiwi/converse"
	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/handler"
	"github.com/soft-kiwi/converse/internal/middleware"
	"github.com/soft-kiwi/converse/internal/repository"
	"github.com/soft-kiwi/converse/internal/service"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Optional .env for local development
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config (OPENROUTER_API_KEY is required)", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database
	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(converseroot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabasePath, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Storage directories
	for _, dir := range []string{cfg.UploadDir, cfg.GeneratedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create storage directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// Embedded browser UI
	webFS, err := fs.Sub(converseroot.WebFS, "web/static")
	if err != nil {
		slog.Error("failed to load embedded web UI", "error", err)
		os.Exit(1)
	}

	// Initialize services
	store := repository.NewStore(db)
	openRouter := service.NewOpenRouterService(cfg.OpenRouterKey)
	fileService := service.NewFileService(store, cfg.UploadDir)
	imageService := service.NewImageService(cfg, store)
	chatService := service.NewChatService(store, openRouter, fileService, imageService, cfg)
	sessionService := service.NewSessionService(store, cfg.GeneratedDir)

	// Initialize handler and routes
	h := handler.New(handler.Deps{
		Cfg:      cfg,
		Chat:     chatService,
		Files:    fileService,
		Sessions: sessionService,
		WebFS:    webFS,
	})

	e := echo.New()
	e.Use(middleware.Recover(), middleware.Logging())
	h.Register(e)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      e,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr(), "model", cfg.ChatModel)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
			os.Exit(1)
		}
		slog.Info("server stopped gracefully")
	case err := <-errCh:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
