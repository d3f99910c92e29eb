package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/odvcencio/taskmate/pkg/actions"
	"github.com/odvcencio/taskmate/pkg/bus"
	"github.com/odvcencio/taskmate/pkg/chat"
	"github.com/odvcencio/taskmate/pkg/config"
	"github.com/odvcencio/taskmate/pkg/logging"
	"github.com/odvcencio/taskmate/pkg/model"
	"github.com/odvcencio/taskmate/pkg/pending"
	"github.com/odvcencio/taskmate/pkg/prompts"
	"github.com/odvcencio/taskmate/pkg/storage"
	"github.com/odvcencio/taskmate/pkg/storage/postgres"
	"github.com/odvcencio/taskmate/pkg/telemetry"
)

// app is the wired dependency graph shared by serve and chat.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	repo     *storage.Store
	pending  *pending.Store
	bus      bus.MessageBus
	tracer   *telemetry.TracerProvider
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	orch     *chat.Orchestrator

	closers []func() error
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, withExitCode(err, exitConfig)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})
}

func openRepository(ctx context.Context, cfg config.StorageConfig) (*storage.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(ctx, cfg.DSN)
	case "sqlite", "":
		return storage.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// generatorFactory builds the model client once metrics exist.
type generatorFactory func(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics) (model.Generator, error)

// newApp wires the dependency graph. The model comes from newGen so tests
// can substitute it.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, newGen generatorFactory) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	repo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.repo = repo
	a.closers = append(a.closers, repo.Close)

	mb, err := bus.New(bus.Config{
		URL:     cfg.Bus.URL,
		Name:    cfg.Bus.Name,
		Timeout: cfg.Bus.Timeout,
		Logger:  logging.For(logger, logging.CategoryBus),
	})
	if err != nil {
		return nil, fmt.Errorf("connect bus: %w", err)
	}
	a.bus = mb
	a.closers = append(a.closers, mb.Close)
	publisher := bus.NewPublisher(mb, cfg.Bus.Prefix, logging.For(logger, logging.CategoryBus))

	tracing := telemetry.TracingConfig{Enabled: cfg.Telemetry.Tracing, Version: version, Output: os.Stderr}
	if cfg.Telemetry.TraceFile != "" {
		f, err := os.OpenFile(cfg.Telemetry.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		tracing.Output = f
	}
	tp, err := telemetry.NewTracerProvider(tracing)
	if err != nil {
		return nil, err
	}
	a.tracer = tp

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = telemetry.NewMetrics(a.registry)

	a.pending = pending.New(pending.Config{
		TTL:           cfg.Pending.TTL,
		SweepInterval: cfg.Pending.SweepInterval,
		Logger:        logging.For(logger, logging.CategoryPending),
	})
	a.pending.AddObserver(publisher.PendingObserver())
	a.pending.AddObserver(a.metrics.PendingObserver(func() int { return a.pending.Stats().TotalEntries }))
	repo.AddObserver(publisher.StorageObserver())

	gen, err := newGen(ctx, cfg, logger, a.metrics)
	if err != nil {
		return nil, err
	}

	temp := cfg.Model.Temperature
	orch, err := chat.New(chat.Config{
		ConfirmThreshold: cfg.Chat.ConfirmThreshold,
		MaxDestructive:   cfg.Chat.MaxDestructive,
		DestructiveToken: cfg.Chat.DestructiveToken,
		Temperature:      &temp,
		MaxOutputTokens:  cfg.Model.MaxOutputTokens,
		ContextItems:     cfg.Chat.MaxContextItems,
	}, chat.Deps{
		Store:      a.pending,
		Generator:  gen,
		Repository: repo,
		Parser: actions.NewParser(
			actions.WithRepair(cfg.Parser.Repair),
			actions.WithLogger(logging.For(logger, logging.CategoryChat)),
		),
		Builder: prompts.NewBuilder(
			prompts.WithMaxHistory(cfg.Chat.MaxHistory),
			prompts.WithMaxItems(cfg.Chat.MaxContextItems),
			prompts.WithLocation(cfg.Location()),
		),
		Publisher: publisher,
		Metrics:   a.metrics,
		Logger:    logging.For(logger, logging.CategoryChat),
	})
	if err != nil {
		return nil, err
	}
	a.orch = orch

	ok = true
	return a, nil
}

// newGenerator builds the guarded Gemini client.
func newGenerator(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics) (model.Generator, error) {
	if err := cfg.RequireModelKey(); err != nil {
		return nil, withExitCode(err, exitConfig)
	}
	provider, err := model.NewGenAIProvider(ctx, model.GenAIConfig{
		APIKey:          cfg.Model.APIKey,
		Model:           cfg.Model.Name,
		BaseURL:         cfg.Model.BaseURL,
		Temperature:     cfg.Model.Temperature,
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
	})
	if err != nil {
		return nil, err
	}
	modelLogger := logging.For(logger, logging.CategoryModel)
	return model.Guard(provider, model.GuardConfig{
		RequestsPerSecond: cfg.Model.RequestsPerSecond,
		Burst:             cfg.Model.Burst,
		Timeout:           cfg.Model.Timeout,
		Logger:            modelLogger,
		Breaker: model.CircuitBreakerConfig{
			MaxFailures:  uint32(cfg.Model.BreakerMaxFailures),
			ResetTimeout: cfg.Model.BreakerResetTimeout,
			Logger:       modelLogger,
			OnStateChange: func(_, to model.CircuitState) {
				metrics.SetCircuitState(int(to))
			},
		},
	}), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			first = err
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
