package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"mercator-hq/mailrules/pkg/audit"
	"mercator-hq/mailrules/pkg/config"
	"mercator-hq/mailrules/pkg/rules"
	"mercator-hq/mailrules/pkg/rules/engine"
	"mercator-hq/mailrules/pkg/rules/store"
	"mercator-hq/mailrules/pkg/telemetry/logging"
	"mercator-hq/mailrules/pkg/telemetry/metrics"
	"mercator-hq/mailrules/pkg/telemetry/tracing"
	"mercator-hq/mailrules/pkg/tiebreaker"

	"github.com/prometheus/client_golang/prometheus"
)

// appOptions are per-command overrides applied on top of the loaded config.
type appOptions struct {
	// storePath replaces store.path when set.
	storePath string

	// withStore opens the rule store and evaluator.
	withStore bool

	// withAudit opens audit storage even when audit.enabled is false.
	withAudit bool

	// enableMetrics forces metrics collection on.
	enableMetrics bool

	// logWriter receives log output. Default: os.Stderr
	logWriter io.Writer
}

// app holds the components a command runs against. close releases them in
// reverse order of construction.
type app struct {
	config     *config.Config
	logger     *slog.Logger
	collector  *metrics.Collector
	tracer     *tracing.Tracer
	store      rules.Store
	evaluator  *engine.Evaluator
	tieBreaker engine.TieBreaker
	audit      audit.Storage
	recorder   *audit.Recorder

	closers []func() error
}

// loadConfig reads --config (or the defaults) with environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.storePath != "" {
		cfg.Store.Path = opts.storePath
	}
	if opts.enableMetrics {
		cfg.Telemetry.Metrics.Enabled = true
	}
	return buildApp(ctx, cfg, opts)
}

func buildApp(ctx context.Context, cfg *config.Config, opts appOptions) (a *app, err error) {
	w := opts.logWriter
	if w == nil {
		w = os.Stderr
	}
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, w))
	if err != nil {
		return nil, err
	}

	a = &app{
		config:    cfg,
		logger:    logger,
		collector: metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry()),
	}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.tracer.Shutdown(context.Background()) })

	if opts.withStore {
		if err := a.openStore(ctx); err != nil {
			return nil, err
		}
		if err := a.openEvaluator(); err != nil {
			return nil, err
		}
	}

	if opts.withAudit || cfg.Audit.Enabled {
		if err := a.openAudit(); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// openStore builds the configured rule store and, if requested, wraps it
// in a category cache.
func (a *app) openStore(ctx context.Context) error {
	cfg := a.config.Store

	var base rules.Store
	switch cfg.Backend {
	case "memory":
		doc, err := store.LoadDocument(cfg.Path)
		if err != nil {
			return err
		}
		mem, err := store.NewMemoryStoreFromDocument(doc)
		if err != nil {
			return err
		}
		base = mem

	case "file":
		fs, err := store.NewFileStore(store.FileStoreConfig{
			Path:             cfg.Path,
			Watch:            cfg.Watch,
			DebounceInterval: cfg.DebounceInterval,
		}, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, fs.Close)
		base = fs

	case "sqlite":
		st, err := store.NewSQLiteStore(store.SQLiteConfig{
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		}, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, st.Close)
		base = st

	case "postgres":
		st, err := store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
		}, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { st.Close(); return nil })
		base = st

	default:
		return fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}

	switch cfg.Cache.Backend {
	case "", "none":
		a.store = base

	case "memory":
		cache := store.NewMemoryCategoryCache(cfg.Cache.TTL)
		a.store = store.NewCachedStore(base, cache, a.logger).WithRecorder(a.collector)

	case "redis":
		cache := store.NewRedisCategoryCache(store.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.TTL,
			Prefix:   cfg.Cache.Prefix,
		})
		a.closers = append(a.closers, cache.Close)
		if err := cache.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach category cache at %s: %w", cfg.Cache.Addr, err)
		}
		a.store = store.NewCachedStore(base, cache, a.logger).WithRecorder(a.collector)

	default:
		return fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}

	a.logger.Debug("rule store opened",
		"backend", cfg.Backend,
		"cache", cfg.Cache.Backend,
	)
	return nil
}

func (a *app) openEvaluator() error {
	engineCfg := engine.DefaultEngineConfig().
		WithTrace(a.config.Engine.Trace).
		WithLegacyCategoryShortCircuit(a.config.Engine.LegacyCategoryShortCircuit)
	if a.config.Engine.MaxRules > 0 {
		engineCfg = engineCfg.WithMaxRules(a.config.Engine.MaxRules)
	}

	evaluator, err := engine.NewEvaluator(engineCfg, a.logger,
		engine.WithRecorder(a.collector),
		engine.WithTracer(a.tracer.Tracer()),
	)
	if err != nil {
		return err
	}
	a.evaluator = evaluator

	tb, err := a.buildTieBreaker()
	if err != nil {
		return err
	}
	a.tieBreaker = tb
	return nil
}

func (a *app) buildTieBreaker() (engine.TieBreaker, error) {
	cfg := a.config.TieBreaker
	switch cfg.Mode {
	case "", "none":
		return tiebreaker.None{}, nil
	case "static":
		return tiebreaker.Static{RuleID: cfg.StaticRuleID}, nil
	case "llm":
		completer, err := tiebreaker.NewOpenAICompleter(tiebreaker.OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     os.Getenv(cfg.APIKeyEnv),
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return tiebreaker.NewLLM(completer, tiebreaker.LLMConfig{MaxBodyChars: cfg.MaxBodyChars}, a.logger), nil
	default:
		return nil, fmt.Errorf("unsupported tie-breaker mode %q", cfg.Mode)
	}
}

func (a *app) openAudit() error {
	cfg := a.config.Audit
	switch cfg.Backend {
	case "memory":
		a.audit = audit.NewMemoryStorage()
	case "", "sqlite":
		sqlCfg := audit.DefaultSQLiteConfig()
		if cfg.Path != "" {
			sqlCfg.Path = cfg.Path
		}
		st, err := audit.NewSQLiteStorage(sqlCfg, a.logger)
		if err != nil {
			return err
		}
		a.audit = st
	default:
		return fmt.Errorf("unsupported audit backend %q", cfg.Backend)
	}
	a.closers = append(a.closers, a.audit.Close)
	if cfg.Enabled {
		a.recorder = audit.NewRecorder(a.audit, a.logger)
	}
	return nil
}

// pruner returns the retention pruner for the audit storage.
func (a *app) pruner() *audit.Pruner {
	return audit.NewPruner(a.audit, &audit.RetentionConfig{
		RetentionDays: a.config.Audit.RetentionDays,
		PruneSchedule: a.config.Audit.PruneSchedule,
	}, a.logger)
}

// evaluate runs the two-phase protocol for one message and writes the
// execution record when auditing is enabled. A nil decision means no rule
// governs the message.
func (a *app) evaluate(ctx context.Context, userID string, msg *rules.Message, isThread bool) (*engine.Decision, error) {
	ctx = logging.WithMessage(ctx, userID, msg.ID, msg.ThreadID)

	ruleSet, err := a.store.LoadRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for user %q: %w", userID, err)
	}

	decision, err := a.evaluator.Decide(ctx, engine.Input{
		UserID:   userID,
		Rules:    ruleSet,
		Message:  msg,
		IsThread: isThread,
		Store:    a.store,
	}, a.tieBreaker)
	if err != nil {
		return nil, err
	}

	if a.recorder != nil && decision != nil {
		if _, err := a.recorder.Record(ctx, userID, msg, isThread, decision); err != nil {
			a.logger.WarnContext(ctx, "failed to write execution record", "error", err)
		}
	}
	return decision, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
