package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyp0633/calrest/internal/config"
	"github.com/cyp0633/calrest/internal/fixtures"
	"github.com/cyp0633/calrest/server"
	authmem "github.com/cyp0633/calrest/server/auth/memory"
	"github.com/cyp0633/calrest/server/events"
	"github.com/cyp0633/calrest/server/storage/memory"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the API server.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address. Overrides CALREST_ADDR."},
			&cli.StringFlag{Name: "fixtures", Usage: "YAML file with users, calendars and events to seed."},
			&cli.StringFlag{Name: "log-level", Usage: "One of debug, info, warn, error. Overrides LOG_LEVEL."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.Addr = c.String("addr")
			}
			if c.IsSet("fixtures") {
				cfg.FixturesFile = c.String("fixtures")
			}
			if c.IsSet("log-level") {
				cfg.LogLevel = c.String("log-level")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := cfg.Logger(os.Stderr)

			undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				logger.Debug(fmt.Sprintf(format, args...))
			}))
			defer undo()
			if err != nil {
				return fmt.Errorf("error setting GOMAXPROCS %w", err)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, cleanup, err := buildServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
			}
			return serve(ctx, cfg, logger, srv, ln)
		},
	}
}

// buildServer wires the in-memory backends, seeds fixtures and returns the
// API server. cleanup releases the recurrence engine once serving is over.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (srv *server.Server, cleanup func(), err error) {
	engine := cfg.Engine()
	defer func() {
		if err != nil {
			engine.Close()
		}
	}()

	store := memory.New()
	creds := authmem.New(authmem.WithLogger(logger))
	svc := events.NewService(store,
		events.WithLogger(logger),
		events.WithEngine(engine))

	if cfg.FixturesFile != "" {
		doc, err := fixtures.LoadFile(cfg.FixturesFile)
		if err != nil {
			return nil, nil, err
		}
		refs, err := doc.Apply(ctx, store, creds, svc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply fixtures: %w", err)
		}
		logger.Info("fixtures loaded",
			"file", cfg.FixturesFile,
			"users", len(refs.Users),
			"events", len(doc.Events))
	}

	srv, err = server.New(svc, creds, server.Options{
		BaseURI:      cfg.BaseURI,
		Realm:        cfg.Realm,
		Logger:       logger,
		MaxBodyBytes: int64(cfg.MaxBodyBytes),
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, engine.Close, nil
}

// serve runs handler on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, handler http.Handler, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server", "addr", ln.Addr().String(), "base_uri", cfg.BaseURI)
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
