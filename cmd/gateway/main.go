package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"codestream-gateway/internal/cache"
	"codestream-gateway/internal/config"
	"codestream-gateway/internal/handlers"
	"codestream-gateway/internal/health"
	"codestream-gateway/internal/httpserver"
	"codestream-gateway/internal/llm"
	"codestream-gateway/internal/metrics"
	"codestream-gateway/internal/observability"
	"codestream-gateway/internal/problems"
	"codestream-gateway/internal/relay"
	"codestream-gateway/pkg/logging/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run(configPath string) error {
	// ----- Config -----
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// ----- Logger -----
	logger, err := logging.NewLogger(logging.Options{Env: cfg.Log.Env, Level: cfg.Log.Level})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logging.SetDefault(logger)
	defer logger.Sync()

	logger.Info("loaded config",
		zap.String("port", cfg.Server.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("model", cfg.Upstream.Model),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Duration("cache_ttl", cfg.Cache.TTL.Duration),
		zap.String("cache_version", cfg.Cache.Version),
		zap.String("problems", cfg.Problems.Path),
	)

	// ----- Tracing -----
	shutdownTracing, err := observability.InitTracing(context.Background(), observability.Options{
		Service:     "codestream-gateway",
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Log.Env,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	// ----- Metrics -----
	metrics.Register()

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		defer redisClient.Close()

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.Cache.RedisAddr),
		)
	}

	// ----- Cache -----
	store, err := cache.New(cache.Config{
		Backend: cfg.Cache.Backend,
		TTL:     cfg.Cache.TTL.Duration,
		Dir:     cfg.Cache.Dir,
		Prefix:  cfg.Cache.Prefix,
	}, redisClient)
	if err != nil {
		return err
	}
	store = cache.NewLoggingStore(store)

	// ----- Problem bank -----
	bank, err := problems.Load(cfg.Problems.Path)
	if err != nil {
		return err
	}
	logger.Info("problem bank loaded", zap.Int("problems", bank.Len()))

	// ----- Upstream client -----
	upstream, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		Model:       cfg.Upstream.Model,
		MaxRetries:  cfg.Upstream.MaxRetries,
		BaseBackoff: cfg.Upstream.BaseBackoff.Duration,
		IdleTimeout: cfg.Upstream.IdleTimeout.Duration,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := upstream.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Health -----
	monitor := health.NewMonitor(logger)
	monitor.Register(handlers.UpstreamTarget, health.PingChecker(upstream, cfg.Health.ProbeTimeout.Duration))
	probeClient := &http.Client{}
	for name, endpoint := range map[string]string{
		"generate": cfg.Health.GenerateURL,
		"explain":  cfg.Health.ExplainURL,
		"correct":  cfg.Health.CorrectURL,
	} {
		if endpoint != "" {
			monitor.Register(name, health.HTTPChecker(probeClient, endpoint, cfg.Health.ProbeTimeout.Duration))
		}
	}
	for name, res := range monitor.ProbeAll(context.Background()) {
		logger.Info("startup probe", zap.String("target", name), zap.Stringer("status", res.Status))
	}

	// ----- Relay engine -----
	opts := llm.Options{
		TopP:       cfg.Upstream.TopP,
		NumPredict: cfg.Upstream.NumPredict,
	}
	if cfg.Upstream.Temperature > 0 {
		t := cfg.Upstream.Temperature
		opts.Temperature = &t
	}
	engine, err := relay.NewEngine(relay.Config{
		Specs:        relay.DefaultSpecs(bank),
		Store:        store,
		Client:       upstream,
		Options:      opts,
		CacheVersion: cfg.Cache.Version,
	})
	if err != nil {
		return err
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Deps{
		Relay:          handlers.NewRelayHandler(engine, monitor, cfg.Health.GateOnUpstream),
		Health:         handlers.NewHealthHandler(monitor),
		Cache:          handlers.NewCacheHandler(store),
		RequestTimeout: cfg.Server.RequestTimeout.Duration,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration,
		ReadTimeout:       cfg.Server.ReadTimeout.Duration,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration,
		IdleTimeout:       cfg.Server.IdleTimeout.Duration,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	case <-stop:
	}
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
