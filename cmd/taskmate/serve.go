package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/taskmate/pkg/api"
	"github.com/odvcencio/taskmate/pkg/bus"
	"github.com/odvcencio/taskmate/pkg/config"
	"github.com/odvcencio/taskmate/pkg/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.RequireAuthSecret(); err != nil {
				return withExitCode(err, exitConfig)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := newLogger(cfg, os.Stdout)
			watched := opts.configPath
			if watched == "" {
				watched = config.ActivePath()
			}
			if watched != "" {
				w := config.NewWatcher(watched, func() (*config.Config, error) {
					return loadConfig(opts)
				}, func(next *config.Config) {
					logging.SetLevel(next.Logging.Level)
				}, logging.For(logger, logging.CategoryCLI))
				go func() {
					if err := w.Run(ctx); err != nil {
						logger.Warn().Err(err).Msg("config watch disabled")
					}
				}()
			}
			return runServe(ctx, cfg, logger, newGenerator)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// runServe blocks until ctx is cancelled or the server fails.
func runServe(ctx context.Context, cfg *config.Config, logger zerolog.Logger, newGen generatorFactory) error {
	a, err := newApp(ctx, cfg, logger, newGen)
	if err != nil {
		return err
	}
	defer a.Close()

	var gatherer prometheus.Gatherer
	if cfg.Telemetry.Metrics {
		gatherer = a.registry
	}
	srv := api.NewServer(api.Config{
		Addr:              cfg.Server.Addr,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
	}, api.Deps{
		Orchestrator: a.orch,
		Repository:   a.repo,
		Tokens:       api.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer),
		Metrics:      a.metrics,
		Gatherer:     gatherer,
		Logger:       logging.For(logger, logging.CategoryAPI),
	})

	a.pending.Start(ctx)
	defer a.pending.Shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return logEvents(gctx, a.bus, cfg.Bus.Prefix, logging.For(logger, logging.CategoryBus))
	})
	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("storage", cfg.Storage.Driver).
		Str("model", cfg.Model.Name).
		Dur("pending_ttl", cfg.Pending.TTL).
		Msg("taskmate started")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited")
		return err
	}
	logger.Info().Msg("taskmate stopped")
	return nil
}

// logEvents writes every domain event to the log until ctx ends.
func logEvents(ctx context.Context, mb bus.MessageBus, prefix string, logger zerolog.Logger) error {
	if prefix == "" {
		prefix = bus.DefaultPrefix
	}
	sub, err := mb.Subscribe(ctx, prefix+".>", func(msg *bus.Message) {
		ev, err := bus.DecodeEvent(msg)
		if err != nil {
			logger.Warn().Err(err).Str("subject", msg.Subject).Msg("undecodable event")
			return
		}
		logger.Info().
			Str("event_id", ev.ID).
			Str("type", ev.Type).
			Str("user_id", ev.UserID).
			Msg("event")
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	_ = sub.Unsubscribe()
	return nil
}
