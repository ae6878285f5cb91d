package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/sahara/api"
	"github.com/GoCodeAlone/sahara/audit"
	"github.com/GoCodeAlone/sahara/auth"
	"github.com/GoCodeAlone/sahara/cache"
	"github.com/GoCodeAlone/sahara/config"
	"github.com/GoCodeAlone/sahara/engine"
	"github.com/GoCodeAlone/sahara/metrics"
	"github.com/GoCodeAlone/sahara/observability/tracing"
	"github.com/GoCodeAlone/sahara/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration YAML file")
	addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
)

// purgeInterval is how often the in-memory history drops idle sessions.
const purgeInterval = 5 * time.Minute

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// closers runs cleanup functions in reverse order.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var cleanup closers
	defer func() {
		if cerr := cleanup.close(); cerr != nil {
			logger.Error("cleanup failed", "error", cerr)
		}
	}()

	st, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	cleanup.add(st.Close)

	history, err := buildHistory(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}

	sink, err := buildSink(cfg.Audit, &cleanup)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(metrics.Config{Namespace: cfg.Metrics.Namespace, Path: cfg.Metrics.Path})
	}

	tracer := tracing.NewAssessmentTracer(nil)
	if cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider(ctx, tracing.Config{
			Endpoint:       cfg.Tracing.Endpoint,
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: api.Version,
			Insecure:       cfg.Tracing.Insecure,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return err
		}
		cleanup.add(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return provider.Shutdown(shutdownCtx)
		})
		tracer = tracing.NewAssessmentTracer(provider.Tracer())
	}

	eng, err := engine.NewBuilder().
		WithLogger(logger).
		WithStore(st).
		WithHistory(history).
		WithSink(sink).
		WithMetrics(collector).
		WithTracer(tracer).
		WithPolicy(cfg.Policy.RecencyWindow, cfg.Policy.RepeatThreshold).
		WithExcerptLength(cfg.Policy.ExcerptLength).
		WithPIIRedaction(cfg.Audit.RedactPII).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	issuer := auth.NewIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	router := api.NewRouter(api.Deps{
		Engine:  eng,
		Issuer:  issuer,
		Metrics: collector,
		Logger:  logger,
	}, api.Config{
		Environment:      cfg.Environment,
		CORSOrigins:      cfg.Server.CORSOrigins,
		SessionRateLimit: cfg.Auth.RateLimit,
	})
	defer router.Stop()

	var handler http.Handler = router
	if cfg.Tracing.Enabled {
		handler = tracing.HTTPMiddleware(handler)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", "addr", cfg.Server.Addr,
			"storage", cfg.Storage.Driver, "audit_sink", cfg.Audit.Sink, "redis", cfg.Redis.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if mem, ok := history.(*cache.MemoryHistory); ok {
		g.Go(func() error {
			purgeLoop(gctx, mem, purgeInterval, logger)
			return nil
		})
	}
	return g.Wait()
}

func buildStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.DSN)
	case config.DriverPostgres:
		return store.NewPGStore(ctx, store.PGConfig{URL: cfg.DSN, MaxConns: cfg.MaxConns})
	case config.DriverMemory, "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func buildHistory(ctx context.Context, cfg *config.Config, cleanup *closers) (cache.HistoryStore, error) {
	hcfg := cache.HistoryConfig{Retention: cfg.Policy.RecencyWindow}
	if !cfg.Redis.Enabled {
		return cache.NewMemoryHistory(hcfg), nil
	}
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	cleanup.add(client.Close)
	return cache.NewRedisHistory(client, cfg.Redis.Prefix, hcfg), nil
}

// buildSink returns the export sink named by cfg, or nil for "none".
func buildSink(cfg config.AuditConfig, cleanup *closers) (audit.Sink, error) {
	switch cfg.Sink {
	case config.SinkNone:
		return nil, nil
	case config.SinkStdout, "":
		return audit.NewLogger(os.Stdout), nil
	case config.SinkFile:
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		cleanup.add(f.Close)
		return audit.NewLogger(f), nil
	case config.SinkNATS:
		sink, conn, err := audit.DialNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, err
		}
		cleanup.add(conn.Drain)
		return sink, nil
	case config.SinkKafka:
		sink, err := audit.DialKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		cleanup.add(sink.Close)
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}

func purgeLoop(ctx context.Context, h *cache.MemoryHistory, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.PurgeExpired(); n > 0 {
				logger.Debug("purged idle risk histories", "sessions", n, "remaining", h.Len())
			}
		}
	}
}
