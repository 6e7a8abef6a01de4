package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/cache"
	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/order"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
	"github.com/xenking/promo-engine/internal/handler"
	"github.com/xenking/promo-engine/internal/storage/memory"
	"github.com/xenking/promo-engine/internal/storage/postgres"
	"github.com/xenking/promo-engine/pkg/health"
	"github.com/xenking/promo-engine/pkg/httpmiddleware"
)

const serviceName = "promo-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.Bool("redis", cfg.RedisURL != ""),
	)

	healthSvc := health.New()
	healthSvc.Register(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))
	healthSvc.Register(health.Liveness, "gc_pause", health.GCMaxPauseCheck(time.Second))

	repos, err := openStorage(ctx, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer repos.close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = openRedis(ctx, cfg.RedisURL, m.TracerProvider(), m.MeterProvider()); err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		healthSvc.Register(health.Readiness, "redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}, health.WithTimeout(2*time.Second))
	}

	svc := newServices(repos, rdb, cfg, m.TracerProvider(), m.MeterProvider())

	var limitStore limiter.Store
	if rdb != nil {
		if limitStore, err = limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
			Prefix: "promo:ratelimit",
		}); err != nil {
			return errors.Wrap(err, "create rate limit store")
		}
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: newRouter(routerConfig{
			Logger:         lg,
			API:            svc.handler(),
			Health:         healthSvc,
			CORS:           cfg.CORS,
			RateLimit:      cfg.RateLimit,
			RateLimitStore: limitStore,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		}),
	}

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go func() {
		_ = healthSvc.Run(healthCtx, 10*time.Second)
	}()
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stopHealth()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// repositories is one storage backend behind the domain interfaces.
type repositories struct {
	products   product.Repository
	promotions promotion.Repository
	orders     order.Repository
	keys       auth.Repository
	tx         domain.TxManager
	close      func()
}

func openStorage(ctx context.Context, cfg *Config, healthSvc *health.Health) (*repositories, error) {
	if cfg.Storage == StorageMemory {
		return newMemoryRepositories(), nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	healthSvc.Register(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))

	return &repositories{
		products:   postgres.NewProductRepository(pool),
		promotions: postgres.NewPromotionRepository(pool),
		orders:     postgres.NewOrderRepository(pool),
		keys:       postgres.NewAPIKeyRepository(pool),
		tx:         postgres.NewTxManager(pool),
		close:      pool.Close,
	}, nil
}

func newMemoryRepositories() *repositories {
	store := memory.NewStore()
	return &repositories{
		products:   store.Products(),
		promotions: store.Promotions(),
		orders:     store.Orders(),
		keys:       store.APIKeys(),
		tx:         memory.NewTxManager(store),
		close:      func() {},
	}
}

func openRedis(ctx context.Context, url string, tp trace.TracerProvider, mp metric.MeterProvider) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opt)
	if err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(tp)); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(mp)); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "instrument redis metrics")
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

type services struct {
	products   *product.Service
	promotions *promotion.Service
	orders     *order.Service
	authn      *auth.Authenticator
}

// newServices wires the domain services. With Redis, order placement reads
// active promotions through the cache and admin writes invalidate it.
func newServices(
	repos *repositories,
	rdb *redis.Client,
	cfg *Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) *services {
	var (
		source      promotion.Source
		invalidator promotion.Invalidator
	)
	if rdb != nil {
		c := cache.NewPromotions(rdb, repos.promotions, cfg.PromotionCache.TTL)
		source, invalidator = c, c
	}

	promotions := promotion.NewService(repos.promotions, repos.products, repos.tx, invalidator, nil)
	if source == nil {
		source = promotions
	}

	return &services{
		products:   product.NewService(repos.products, nil),
		promotions: promotions,
		orders: order.NewService(repos.products, source, repos.orders, repos.tx,
			order.WithCurrency(cfg.Currency),
			order.WithTracerProvider(tp),
			order.WithMeterProvider(mp),
		),
		authn: auth.NewAuthenticator(repos.keys, []byte(cfg.APIKeyPepper)),
	}
}

func (s *services) handler() *handler.Handler {
	return handler.New(handler.Config{
		Products:      s.products,
		Promotions:    s.promotions,
		Orders:        s.orders,
		Authenticator: s.authn,
	})
}

type routerConfig struct {
	Logger         *zap.Logger
	API            *handler.Handler
	Health         *health.Health
	CORS           CORSConfig
	RateLimit      RateLimitConfig
	RateLimitStore limiter.Store
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// newRouter serves the health probes and mounts the API under /api. Only
// the API is rate limited.
func newRouter(cfg routerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(cfg.Logger),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.Instrument(serviceName, cfg.TracerProvider, cfg.MeterProvider),
		httpmiddleware.LogRequests(),
	)

	r.Get("/livez", cfg.Health.Handler(health.Liveness))
	r.Get("/readyz", cfg.Health.Handler(health.Readiness))
	r.Mount("/api", httpmiddleware.Wrap(cfg.API.Routes(),
		httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Store:  cfg.RateLimitStore,
		}),
	))
	return r
}
