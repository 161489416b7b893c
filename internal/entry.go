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

	"github.com/starford/agenda/internal/api"
	"github.com/starford/agenda/internal/booking"
	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/eventservice"
	"github.com/starford/agenda/internal/index"
	"github.com/starford/agenda/internal/mcpserver"
	"github.com/starford/agenda/internal/refresh"
	"github.com/starford/agenda/internal/source"
	"github.com/starford/agenda/internal/sse"
	"github.com/starford/agenda/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// components is everything the run modes share.
type components struct {
	db      *index.DB
	src     source.Source
	writer  source.Writer
	seedDir string
	cal     calendar.Calendar
	links   *booking.Linker
}

func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// build opens the cache and constructs the configured source and
// integrations. The caller closes c.db.
func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	src, writer, seedDir, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	cal, err := newCalendar(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	links, err := booking.NewLinker(cfg.Booking.BaseURL, cfg.Booking.AffiliateID)
	if err != nil {
		return nil, fmt.Errorf("init booking: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return &components{db: db, src: src, writer: writer, seedDir: seedDir, cal: cal, links: links}, nil
}

func newSource(cfg *Config, logger *slog.Logger) (source.Source, source.Writer, string, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	switch cfg.Source.Kind {
	case source.KindSupabase:
		s := source.NewSupabase(cfg.Source.Supabase.Source(), httpClient, logger)
		return s, s, "", nil

	case source.KindDirectory:
		root := cfg.Source.Directory.Path
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, nil, "", fmt.Errorf("create seed dir: %w", err)
		}
		store, err := storage.NewFS(root)
		if err != nil {
			return nil, nil, "", fmt.Errorf("init storage: %w", err)
		}
		d := source.NewDirectory(store, logger)
		return d, d, root, nil

	case source.KindICS:
		loc, err := cfg.Calendar.Location()
		if err != nil {
			return nil, nil, "", err
		}
		feed := source.NewICSFeed(source.ICSConfig{
			URL:         cfg.Source.ICS.URL,
			HorizonDays: cfg.Source.ICS.HorizonDays,
			Location:    loc,
		}, httpClient, logger)
		return feed, nil, "", nil
	}
	return nil, nil, "", fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
}

func newCalendar(ctx context.Context, cfg *Config, logger *slog.Logger) (calendar.Calendar, error) {
	switch cfg.Calendar.Backend {
	case calendar.BackendCalDAV:
		return calendar.NewCalDAV(cfg.Calendar.CalDAV.Calendar(), nil, logger)
	case calendar.BackendGoogle:
		return calendar.NewGoogle(ctx, cfg.Calendar.Google.Calendar(), logger)
	}
	return calendar.Disabled{}, nil
}

func (c *components) service(logger *slog.Logger, runner *refresh.Runner) *eventservice.Service {
	opts := []eventservice.Option{
		eventservice.WithCalendar(c.cal),
		eventservice.WithBooking(c.links),
		eventservice.WithLogger(logger),
	}
	if runner != nil {
		opts = append(opts, eventservice.WithRefresher(runner))
	}
	if c.writer != nil {
		opts = append(opts, eventservice.WithWriter(c.writer))
	}
	return eventservice.New(c.db, opts...)
}

// Run starts the HTTP server, the refresh schedule and, for a directory
// source, the seed directory watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Source.Kind),
		slog.String("refresh", cfg.Source.Refresh),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("calendar", cfg.Calendar.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	broker := sse.NewBroker(sse.WithCatalogThrottle(2 * time.Second))
	defer broker.Close()

	runner := refresh.New(c.db, c.src, logger,
		refresh.WithChangeCallback(broker.PublishEventChange),
		refresh.WithAfterSync(func(stats index.Stats) {
			if stats.Changed() {
				broker.PublishRefresh(stats)
			}
		}),
	)

	// A failed first sync keeps serving whatever the cache already holds.
	if _, err := runner.RunOnce(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := c.service(logger, runner)
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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if c.seedDir != "" {
		g.Go(func() error {
			return index.Watch(gCtx, c.db, c.src, c.seedDir, index.DefaultDebounce, logger, broker.PublishEventChange)
		})
	}

	g.Go(func() error {
		return runner.Schedule(gCtx, cfg.Source.Refresh)
	})

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

		logger.Info("Shutting down server...")

		// Stream handlers only return when their client goes away.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the watcher and the schedule when shutdown came from a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunRefresh performs one sync of the cache and logs the counters.
func RunRefresh(ctx context.Context, opts ...Option) (index.Stats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return index.Stats{}, err
	}
	logger := app.logger()

	c, err := build(ctx, app.config, logger)
	if err != nil {
		return index.Stats{}, err
	}
	defer c.db.Close()

	stats, err := refresh.New(c.db, c.src, logger).RunOnce(ctx)
	if err != nil {
		return stats, fmt.Errorf("refresh: %w", err)
	}
	logger.Info("refresh done",
		slog.Int("fetched", stats.Fetched),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted))
	return stats, nil
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := build(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	runner := refresh.New(c.db, c.src, logger)
	if _, err := runner.RunOnce(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(c.service(logger, runner), app.version)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
