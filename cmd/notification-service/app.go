package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // PostgreSQL driver

	"notifier/internal/auth"
	"notifier/internal/config"
	"notifier/internal/constants"
	"notifier/internal/logger"
	"notifier/internal/notification"
	"notifier/internal/stream"
	"notifier/pkg/bootstrap"
	"notifier/pkg/circuitbreaker"
	"notifier/pkg/health"
	"notifier/pkg/metrics"
	"notifier/pkg/middleware"
	"notifier/pkg/migrations"
	"notifier/pkg/ratelimit"

	"golang.org/x/sync/errgroup"
)

type App struct {
	*bootstrap.Base

	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	redisClient *redis.Client

	service  *notification.Service
	registry *stream.Registry
	server   *http.Server
	router   *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := a.InitBroker("notification-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.InfowCtx(ctx, "Database migrations applied")
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis connection failed, duplicate checks fall back to the database", "error", err)
	} else {
		a.redisClient = redisClient
	}

	return nil
}

func (a *App) initServices() error {
	repo := notification.NewPostgresRepository(a.db, a.Logger)
	translator := notification.NewTranslator(a.Logger)

	a.registry = stream.NewRegistry(
		a.Config.Stream.SendBufferSize,
		time.Duration(a.Config.Stream.WriteTimeoutSeconds)*time.Second,
		a.Logger,
	)

	cache := a.buildSeenCache()

	a.service = notification.NewService(
		repo,
		cache,
		translator,
		a.registry,
		a.Config.Notifications,
		a.Logger,
	)
	return nil
}

// buildSeenCache picks the duplicate-check fast path: Redis when
// configured and reachable, wrapped in a circuit breaker when enabled,
// otherwise a cache that never reports seen so every check lands on the
// database constraint.
func (a *App) buildSeenCache() notification.SeenCache {
	if a.redisClient == nil {
		return notification.NoopSeenCache{}
	}

	ttl := time.Duration(a.Config.Notifications.SeenCacheTTLSeconds) * time.Second
	var cache notification.SeenCache = notification.NewRedisSeenCache(a.redisClient, ttl)

	if a.Config.CircuitBreaker.Enabled {
		cbCfg := circuitbreaker.DefaultConfig("seen-cache")
		if a.Config.CircuitBreaker.MaxRequests > 0 {
			cbCfg.MaxRequests = a.Config.CircuitBreaker.MaxRequests
		}
		if a.Config.CircuitBreaker.IntervalSeconds > 0 {
			cbCfg.Interval = time.Duration(a.Config.CircuitBreaker.IntervalSeconds) * time.Second
		}
		if a.Config.CircuitBreaker.TimeoutSeconds > 0 {
			cbCfg.Timeout = time.Duration(a.Config.CircuitBreaker.TimeoutSeconds) * time.Second
		}
		cache = notification.NewCircuitBreakerSeenCache(cache, circuitbreaker.NewWrapper(cbCfg))
	}

	return cache
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.RateLimit.RPS,
			Burst:           a.Config.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	apiHandler := notification.NewHandler(a.service, a.Logger)
	apiHandler.RegisterRoutes(router.Group("/api/v1"))

	verifier := auth.NewVerifier(a.Config.Auth)
	streamHandler := stream.NewHandler(a.registry, verifier, a.Logger)
	router.GET(a.Config.Stream.Path, streamHandler.Serve)

	metrics.RegisterIngestMetrics()
	metrics.RegisterStreamMetrics()
	metrics.RegisterAPIMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeoutSeconds) * time.Second,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Starting event consumer",
			"topics", a.Config.Broker.Kafka.Topics,
			"group_id", a.Config.Broker.Kafka.GroupID,
		)
		return a.Consumer.Consume(gCtx, a.Config.Broker.Kafka.Topics, a.service.HandleRecord)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *App) shutdown() error {
	a.Logger.Info("Shutting down notification service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.registry != nil {
		a.registry.CloseAll()
	}

	errs = append(errs, a.ShutdownBroker()...)
	errs = append(errs, a.dbConnector.ShutdownDatabases(shutdownCtx, a.redisClient, a.db)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.Logger.Info("Notification service exited successfully")
	return nil
}
