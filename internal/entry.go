// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/confirm"
	"github.com/starford/ansuz/internal/coordinator"
	"github.com/starford/ansuz/internal/engine"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/prompt"
	"github.com/starford/ansuz/internal/resolver"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/toolsets"
)

// Run starts the vault-watching service with the given options: it indexes
// the vault, watches for note changes, and processes directive blocks as
// users save them, exposing the confirmation API over HTTP.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("model", cfg.Model.Default),
		slog.String("confirm_address", cfg.Confirm.HTTP.Address()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	invoker := app.invoker
	if invoker == nil {
		invoker, err = llm.NewGemini(ctx, cfg.Model.APIKey)
		if err != nil {
			return fmt.Errorf("init model client: %w", err)
		}
	}

	registry, err := buildRegistry(store, db)
	if err != nil {
		return fmt.Errorf("init toolsets: %w", err)
	}

	confirmer := confirm.NewHTTP(cfg.Tools.ConfirmTimeout.Std())
	defer confirmer.Close()

	prompts := prompt.NewVaultPrompts(store, cfg.Vault.PromptsDir)
	eng := engine.New(
		store,
		invoker,
		registry,
		confirmer,
		resolver.New(store, db, prompts, cfg.Fetch.Timeout.Std()),
		prompts,
		prompt.Defaults{
			Model:       cfg.Model.Default,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		},
		engine.WithLoopCap(cfg.Tools.LoopCap),
		engine.WithLogger(logger),
	)

	coord := coordinator.New(eng, store,
		coordinator.WithDebounce(cfg.Watcher.Debounce.Std()),
		coordinator.WithLogger(logger))

	// Confirmation API server.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api", confirmer.Router())

	httpServer := &http.Server{
		Addr:    cfg.Confirm.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := coord.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return coordinator.Watch(gCtx, coord, db, store, cfg.Vault.Path, logger)
	})

	g.Go(func() error {
		logger.Info("Starting confirmation server", slog.String("address", cfg.Confirm.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped successfully")
	return nil
}

// ProcessOnce processes the directive blocks of a single note and exits.
// approveAll skips confirmation for sensitive tools; without it they are
// denied, since a one-shot run has no confirmation surface to wait on.
func ProcessOnce(ctx context.Context, cfg *Config, notePath string, approveAll bool, opts ...Option) error {
	app := &application{config: cfg}
	for _, opt := range opts {
		opt(app)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	invoker := app.invoker
	if invoker == nil {
		invoker, err = llm.NewGemini(ctx, cfg.Model.APIKey)
		if err != nil {
			return fmt.Errorf("init model client: %w", err)
		}
	}

	registry, err := buildRegistry(store, db)
	if err != nil {
		return fmt.Errorf("init toolsets: %w", err)
	}

	confirmer := confirm.AutoDeny()
	if approveAll {
		confirmer = confirm.AutoApprove()
	}

	prompts := prompt.NewVaultPrompts(store, cfg.Vault.PromptsDir)
	eng := engine.New(
		store,
		invoker,
		registry,
		confirmer,
		resolver.New(store, db, prompts, cfg.Fetch.Timeout.Std()),
		prompts,
		prompt.Defaults{
			Model:       cfg.Model.Default,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		},
		engine.WithLoopCap(cfg.Tools.LoopCap),
		engine.WithLogger(logger),
	)

	wrote, _, err := eng.ProcessDocument(ctx, notePath)
	if err != nil {
		return err
	}
	if !wrote {
		logger.Info("no pending blocks", slog.String("path", notePath))
	}
	return nil
}

// ServeMCP exposes the vault toolsets over MCP stdio.
func ServeMCP(cfg *Config) error {
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	registry, err := buildRegistry(store, db)
	if err != nil {
		return fmt.Errorf("init toolsets: %w", err)
	}
	return mcpserver.New(registry).ServeStdio()
}

func buildRegistry(store storage.Provider, db index.NoteIndex) (*toolsets.Registry, error) {
	registry := toolsets.NewRegistry()
	if err := registry.Register("vault", toolsets.VaultToolset(store, db)...); err != nil {
		return nil, err
	}
	if err := registry.Register("system", toolsets.SystemToolset()...); err != nil {
		return nil, err
	}
	return registry, nil
}
