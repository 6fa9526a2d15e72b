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

	"github.com/starford/inkday/internal/api"
	"github.com/starford/inkday/internal/diaryservice"
	"github.com/starford/inkday/internal/index"
	"github.com/starford/inkday/internal/mcpserver"
	"github.com/starford/inkday/internal/sse"
	"github.com/starford/inkday/internal/storage"
)

// stack is the wiring shared by the HTTP server and the MCP server.
type stack struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
}

func newStack(opts ...Option) (*stack, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("diary_dir", cfg.Diary.Dir),
		slog.String("diary_file", cfg.Diary.File),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Diary.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diary dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Diary.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Pick up edits made while we were not running.
	if _, err := index.Sync(db, store, cfg.Diary.File, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &stack{cfg: cfg, logger: logger, store: store, db: db}, nil
}

func (s *stack) service(opts ...diaryservice.Option) *diaryservice.Service {
	opts = append([]diaryservice.Option{
		diaryservice.WithDocument(s.cfg.Diary.File),
		diaryservice.WithLogger(s.logger),
	}, opts...)
	return diaryservice.NewService(s.store, s.db, opts...)
}

// Run starts the HTTP server, the document watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	st, err := newStack(opts...)
	if err != nil {
		return err
	}
	defer st.db.Close()

	cfg, logger := st.cfg, st.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := st.service(diaryservice.WithNotifier(broker))
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Diary.Watch {
		g.Go(func() error {
			return index.Watch(gCtx, st.db, st.store, cfg.Diary.File, logger, func(kind, _ string) {
				broker.PublishCalendarEvent("document." + kind)
			})
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")

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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the diary tools over MCP stdio until stdin closes.
func RunMCP(_ context.Context, opts ...Option) error {
	st, err := newStack(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer st.db.Close()

	st.logger.Info("MCP server starting on stdio")
	return mcpserver.New(st.service()).ServeStdio()
}
