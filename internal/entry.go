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

	"github.com/starford/playbooksync/internal/api"
	"github.com/starford/playbooksync/internal/history"
	"github.com/starford/playbooksync/internal/importer"
	"github.com/starford/playbooksync/internal/mcpserver"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/scheduler"
	"github.com/starford/playbooksync/internal/sse"
	"github.com/starford/playbooksync/internal/storage"
	"github.com/starford/playbooksync/internal/store"
)

// Serve runs the HTTP read API, the weekly scheduler and, for a local
// repository, the document watcher until ctx is cancelled or a signal arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("repository_driver", cfg.Repository.Driver),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("embedding_model", cfg.Embedding.Model),
		slog.String("llm_model", cfg.LLM.Model),
		slog.Bool("schedule_enabled", cfg.Schedule.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := build(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	// Warm the embedding cache before serving.
	if res, err := c.cache.Refresh(ctx); err != nil {
		logger.Warn("initial cache refresh failed", slog.String("error", err.Error()))
	} else {
		logger.Info("document cache ready",
			slog.Int("documents", res.Documents),
			slog.Int("embedded", res.Embedded),
			slog.Int("reused", res.Reused))
	}

	svc := history.NewService(c.db, c.db, c.cache)
	apiRouter := api.NewRouter(svc, broker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(c.db))
	r.Handle("/metrics", c.metrics.Handler())
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(cfg.Schedule.Cron, c.orch, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sched.Run(gCtx)
		})
	}

	if fsRepo, ok := c.repo.(*storage.FS); ok {
		g.Go(func() error {
			err := c.cache.Watch(gCtx, fsRepo.Root(), broker.PublishDocumentEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("document watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server was asked to stop so the
// scheduler and watcher exit too.
var errShutdown = errors.New("shutdown")

func readyHandler(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// RunOnce executes a single sync run and returns its record. The error is
// non-nil only for fatal failures.
func RunOnce(ctx context.Context, opts ...Option) (*models.SyncRun, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := app.newLogger()

	c, err := build(app.config, logger, nil)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.orch.Run(ctx)
}

// ServeMCP serves the run history over MCP on stdin/stdout.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	db, err := store.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	logger.Info("MCP server starting", slog.String("sqlite_path", app.config.SQLite.Path))
	return mcpserver.New(history.NewService(db, db, nil), app.version).ServeStdio()
}

// ImportEntries loads knowledge entries from a YAML or JSON file into the
// knowledge store and returns how many were read.
func ImportEntries(ctx context.Context, path string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	logger := app.newLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read entries: %w", err)
	}
	entries, err := importer.Parse(data, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	db, err := store.Open(app.config.SQLite.Path)
	if err != nil {
		return 0, fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	n, err := importer.Import(ctx, db, entries)
	if err != nil {
		return n, err
	}
	logger.Info("entries imported", slog.String("file", path), slog.Int("count", n))
	return n, nil
}
