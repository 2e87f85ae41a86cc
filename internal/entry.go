// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/arbor/internal/api"
	"github.com/starford/arbor/internal/editfeed"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/mcpserver"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/plotservice"
	"github.com/starford/arbor/internal/sse"
	"github.com/starford/arbor/internal/storage"
	"github.com/starford/arbor/internal/transport"
)

const userAgent = "arbor/1.0"

// staticGeoRev is the configured fallback geo-revision used offline.
type staticGeoRev string

func (s staticGeoRev) GeoRevID() string { return string(s) }

// components are the pieces shared by the HTTP server and the MCP server.
type components struct {
	store  *storage.FS
	db     *index.DB
	client *transport.Client
	plots  *plotservice.Service
	cache  *editfeed.Cache
	loader *editfeed.Loader
}

func (c *components) Close() error {
	return c.db.Close()
}

func newApplication(opts []Option, defaultOutput io.Writer) (*application, *slog.Logger, error) {
	app := &application{logOutput: defaultOutput}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// build opens the store and index, runs the initial sync and, when a server
// is configured, wires the remote client and the edit feed.
func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	c := &components{store: store, db: db}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svcOpts := []plotservice.Option{plotservice.WithLogger(logger)}
	if cfg.Server.Online() {
		client, err := transport.NewClient(cfg.Server.BaseURL,
			transport.WithTimeout(cfg.Server.Timeout),
			transport.WithImageTTL(cfg.Server.ImageCacheTTL),
			transport.WithToken(cfg.Server.Token),
			transport.WithUserAgent(userAgent),
			transport.WithGeoRevID(cfg.Server.GeoRevID),
		)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init transport: %w", err)
		}
		if _, err := client.FetchInstance(ctx); err != nil {
			logger.Warn("instance fetch failed, using configured geo revision",
				slog.String("error", err.Error()))
		}
		c.client = client
		svcOpts = append(svcOpts, plotservice.WithRemote(client), plotservice.WithGeoRevSource(client))
	} else if cfg.Server.GeoRevID != "" {
		svcOpts = append(svcOpts, plotservice.WithGeoRevSource(staticGeoRev(cfg.Server.GeoRevID)))
	}
	c.plots = plotservice.NewService(store, db, svcOpts...)

	c.cache = editfeed.Shared()
	if cfg.Edits.MaxEntries > 0 {
		c.cache = editfeed.NewCache(cfg.Edits.MaxEntries)
	}
	switch {
	case cfg.Edits.Enabled() && c.client != nil:
		user := models.NewUser(cfg.Edits.UserID, cfg.Edits.Username)
		c.loader = editfeed.NewLoader(c.client, c.cache, user,
			editfeed.WithPageSize(cfg.Edits.PageSize),
			editfeed.WithLogger(logger))
	case cfg.Edits.Enabled():
		logger.Warn("edit feed needs server.base_url, feed disabled")
	}
	return c, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("online", cfg.Server.Online()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	routerCfg := api.RouterConfig{
		Plots:       c.plots,
		EditCache:   c.cache,
		Events:      broker,
		SSE:         broker,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
	}
	if c.loader != nil {
		routerCfg.EditLoader = c.loader
	}
	apiRouter := api.NewRouter(routerCfg)

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
		if err := c.db.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
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

	g.Go(func() error {
		if err := index.Watch(gCtx, c.db, c.store, cfg.Store.Path, logger, broker.PublishPlotEvent); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the plot tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}

	c, err := build(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	var mcpOpts []mcpserver.Option
	if c.loader != nil {
		mcpOpts = append(mcpOpts, mcpserver.WithEditFeed(c.loader, c.cache))
	}
	srv := mcpserver.New(c.plots, mcpOpts...)

	logger.Info("MCP server starting", slog.String("store_path", app.config.Store.Path))
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
