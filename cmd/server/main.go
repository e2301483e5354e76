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

	"trustbridge/internal/action"
	"trustbridge/internal/advisor"
	authhandler "trustbridge/internal/auth/handler"
	authservice "trustbridge/internal/auth/service"
	userstore "trustbridge/internal/auth/store/user"
	"trustbridge/internal/company"
	"trustbridge/internal/compliance"
	"trustbridge/internal/compliance/reload"
	jwttoken "trustbridge/internal/jwt_token"
	"trustbridge/internal/ledger"
	"trustbridge/internal/platform/config"
	"trustbridge/internal/platform/database"
	"trustbridge/internal/platform/health"
	"trustbridge/internal/platform/httpserver"
	"trustbridge/internal/platform/kafka/producer"
	"trustbridge/internal/platform/logger"
	"trustbridge/internal/platform/metrics"
	"trustbridge/internal/platform/redis"
	"trustbridge/internal/ratelimit"
	"trustbridge/internal/seeder"
	"trustbridge/migrations"
	"trustbridge/pkg/platform/middleware/auth"
	"trustbridge/pkg/platform/middleware/metadata"
	"trustbridge/pkg/platform/middleware/request"
)

const (
	serviceName       = "api"
	requestTimeout    = 60 * time.Second
	maxRequestBody    = 1 << 20
	prunerInterval    = time.Minute
	poolStatsInterval = 15 * time.Second
	ledgerQueueSize   = 256
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// stores holds whichever persistence backend the config selected.
type stores struct {
	users     authservice.UserStore
	companies company.Store
	actions   action.Store
	ledger    ledger.Store
	tx        action.TxRunner
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing trustbridge api",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"ai_engine", cfg.AIEngineURL != "",
		"postgres", cfg.Database.URL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.Kafka.Enabled(),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, serviceName)
	healthHandler := health.New(serviceName, cfg.Environment)

	g, gctx := errgroup.WithContext(ctx)

	rules, watcher, err := loadRules(cfg.RulesFile, log, m)
	if err != nil {
		return err
	}
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	pool, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close() //nolint:errcheck // shutdown
		version, err := database.Migrate(ctx, cfg.Database.URL, migrations.FS)
		if err != nil {
			return err
		}
		log.Info("database migrations applied", "schema_version", version)
		if err := pool.RegisterMetrics(reg, serviceName); err != nil {
			return err
		}
		healthHandler.RegisterCheck("postgres", pool.Health)
	}
	st := buildStores(pool)

	limiter, err := buildLimiter(gctx, g, cfg.Redis, reg, healthHandler)
	if err != nil {
		return err
	}

	publisher, closeProducer, err := buildPublisher(cfg.Kafka, log, m, healthHandler)
	if err != nil {
		return err
	}
	defer closeProducer()
	defer publisher.Close()

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL)
	authSvc := authservice.New(st.users, jwtService,
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
	)

	adv := advisor.New(cfg.AIEngineURL, cfg.InternalToken, rules,
		advisor.WithLogger(log),
		advisor.WithMetrics(m),
	)
	ledgerSvc := ledger.NewService(st.ledger,
		ledger.WithLogger(log),
		ledger.WithMetrics(m),
		ledger.WithEmitter(publisher),
	)
	// Actions resolve company names through a read-only directory so the
	// company service can depend on the action recorder.
	directory := company.NewService(st.companies, company.WithLogger(log))
	actionSvc := action.NewService(st.tx, st.actions, adv, ledgerSvc,
		action.WithLogger(log),
		action.WithCompanies(directory),
	)
	companySvc := company.NewService(st.companies,
		company.WithLogger(log),
		company.WithRecorder(actionSvc),
		company.WithAuditing(adv, authSvc),
	)

	if cfg.SeedDemoData {
		if err := seeder.New(authSvc, companySvc, actionSvc, log).SeedAll(ctx); err != nil {
			return err
		}
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Internal-Token"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
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

	authHandler := authhandler.New(authSvc, log)
	ledgerHandler := ledger.NewHandler(ledgerSvc, ledgerSvc, log)
	companyHandler := company.NewHandler(companySvc, log)
	actionHandler := action.NewHandler(actionSvc, rules, log)

	validator := jwttoken.NewJWTServiceAdapter(jwtService)
	loginGuard := ratelimit.NewMiddleware(limiter, "login", cfg.LoginRateLimitPerMinute,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m),
	)

	router.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)

		authHandler.RegisterPublic(r, loginGuard.Handler)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(validator, authSvc, log))
			authHandler.Register(r)
			ledgerHandler.Register(r)
			companyHandler.Register(r)
			actionHandler.Register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuthOrInternal(validator, authSvc, cfg.InternalToken, log, "admin"))
			ledgerHandler.RegisterAppend(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireInternalToken(cfg.InternalToken, log))
			actionHandler.RegisterInternal(r)
		})
	})

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

// loadRules returns a hot-reloading watcher when a rules file is configured
// and the built-in catalogue otherwise.
func loadRules(path string, log *slog.Logger, m *metrics.Metrics) (compliance.Provider, *reload.Watcher, error) {
	if path == "" {
		classifier, err := compliance.NewDefault()
		return classifier, nil, err
	}
	watcher, err := reload.New(path,
		reload.WithLogger(log),
		reload.WithReloadHook(func(fingerprint string, err error) {
			m.RecordRulesReload(err)
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	log.Info("compliance rules loaded", "path", path)
	return watcher, watcher, nil
}

func buildStores(pool *database.Pool) stores {
	if pool == nil {
		actions := action.NewInMemoryStore()
		entries := ledger.NewInMemoryStore()
		return stores{
			users:     userstore.New(),
			companies: company.NewInMemoryStore(),
			actions:   actions,
			ledger:    entries,
			tx:        action.NewInMemoryTx(actions, entries),
		}
	}
	db := pool.DB()
	return stores{
		users:     userstore.NewPostgres(db),
		companies: company.NewPostgres(db),
		actions:   action.NewPostgres(db),
		ledger:    ledger.NewPostgres(db),
		tx:        newRecordPostgresTx(db),
	}
}

func buildLimiter(ctx context.Context, g *errgroup.Group, cfg config.RedisConfig, reg prometheus.Registerer, hh *health.Handler) (ratelimit.Limiter, error) {
	client, err := redis.New(cfg, reg, serviceName)
	if err != nil {
		return nil, err
	}
	if client == nil {
		limiter := ratelimit.NewMemoryLimiter()
		g.Go(func() error { return limiter.RunPruner(ctx, prunerInterval) })
		return limiter, nil
	}
	hh.RegisterCheck("redis", client.Health)
	g.Go(func() error {
		defer client.Close() //nolint:errcheck // shutdown
		return client.ReportPoolStats(ctx, poolStatsInterval)
	})
	return ratelimit.NewRedisLimiter(client, "trustbridge:ratelimit:"), nil
}

func buildPublisher(cfg config.KafkaConfig, log *slog.Logger, m *metrics.Metrics, hh *health.Handler) (*ledger.Publisher, func(), error) {
	if !cfg.Enabled() {
		return ledger.NewPublisher(producer.NoopProducer{}, cfg.LedgerTopic), func() {}, nil
	}
	prod, err := producer.New(cfg, producer.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	hh.RegisterCheck("kafka", prod.Health)
	publisher := ledger.NewPublisher(prod, cfg.LedgerTopic,
		ledger.WithAsyncBuffer(ledgerQueueSize),
		ledger.WithPublisherLogger(log),
		ledger.WithPublisherMetrics(m),
	)
	closeProducer := func() {
		if err := prod.Close(); err != nil {
			log.Warn("failed to close kafka producer", "error", err)
		}
	}
	return publisher, closeProducer, nil
}
