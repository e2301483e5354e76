package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"trustbridge/internal/compliance"
	"trustbridge/internal/compliance/reload"
	"trustbridge/internal/engine"
	"trustbridge/internal/gemini"
	"trustbridge/internal/platform/config"
	"trustbridge/internal/platform/health"
	"trustbridge/internal/platform/httpserver"
	"trustbridge/internal/platform/logger"
	"trustbridge/internal/platform/metrics"
	"trustbridge/internal/platform/redis"
	"trustbridge/internal/ratelimit"
	"trustbridge/pkg/platform/middleware/auth"
	"trustbridge/pkg/platform/middleware/metadata"
	"trustbridge/pkg/platform/middleware/request"
)

const (
	serviceName    = "legal-engine"
	requestTimeout = 90 * time.Second
	maxRequestBody = 1 << 20
)

func main() {
	cfg, err := config.EngineFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("legal engine exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("legal engine stopped")
}

func run(cfg config.Engine, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, serviceName)
	healthHandler := health.New(serviceName, cfg.Environment)

	g, gctx := errgroup.WithContext(ctx)

	var rules compliance.Provider
	if cfg.RulesFile != "" {
		watcher, err := reload.New(cfg.RulesFile,
			reload.WithLogger(log),
			reload.WithReloadHook(func(_ string, err error) { m.RecordRulesReload(err) }),
		)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
		rules = watcher
	} else {
		classifier, err := compliance.NewDefault()
		if err != nil {
			return err
		}
		rules = classifier
	}

	ai := gemini.New(cfg.Gemini, gemini.WithLogger(log))
	if !ai.Enabled() {
		log.Warn("GEMINI_API_KEY not set, serving rule-based verdicts only")
	}
	svc := engine.New(rules, ai,
		engine.WithLogger(log),
		engine.WithMetrics(m),
	)

	limiter, err := buildLimiter(gctx, g, cfg.Redis, reg, healthHandler)
	if err != nil {
		return err
	}
	limit := ratelimit.NewMiddleware(limiter, "engine", cfg.RateLimitPerMinute,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m),
	)

	guard := []func(http.Handler) http.Handler{limit.Handler}
	if cfg.InternalToken != "" {
		guard = append(guard, auth.RequireInternalToken(cfg.InternalToken, log))
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Internal-Token"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	router.Use(request.Recovery(log))
	router.Use(request.RequestID)
	router.Use(request.RequestTime)
	router.Use(metadata.NewMiddleware(metadata.Config{TrustedProxies: cfg.TrustedProxies}).Handler)
	router.Use(request.Logger(log))
	router.Use(request.LatencyMiddleware(request.NewMetrics(reg, serviceName)))
	router.Use(request.Timeout(requestTimeout))
	router.Use(request.BodyLimit(maxRequestBody))

	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	healthHandler.Register(router)

	handler := engine.NewHandler(svc, healthHandler, cfg.Environment, log)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		handler.Register(r, guard...)
	})

	log.Info("initializing trustbridge legal engine",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"ai_enabled", svc.AIEnabled(),
		"model", ai.Model(),
	)

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		err := httpserver.Run(gctx, srv, log)
		stop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildLimiter(ctx context.Context, g *errgroup.Group, cfg config.RedisConfig, reg prometheus.Registerer, hh *health.Handler) (ratelimit.Limiter, error) {
	client, err := redis.New(cfg, reg, serviceName)
	if err != nil {
		return nil, err
	}
	if client == nil {
		limiter := ratelimit.NewMemoryLimiter()
		g.Go(func() error { return limiter.RunPruner(ctx, time.Minute) })
		return limiter, nil
	}
	hh.RegisterCheck("redis", client.Health)
	g.Go(func() error {
		defer client.Close() //nolint:errcheck // shutdown
		return client.ReportPoolStats(ctx, 15*time.Second)
	})
	return ratelimit.NewRedisLimiter(client, "trustbridge:engine:ratelimit:"), nil
}
