// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wealthsupernova/supernova/internal/account"
	"github.com/wealthsupernova/supernova/internal/admin"
	"github.com/wealthsupernova/supernova/internal/article"
	"github.com/wealthsupernova/supernova/internal/auth"
	"github.com/wealthsupernova/supernova/internal/bookmark"
	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/dispatch"
	"github.com/wealthsupernova/supernova/internal/health"
	"github.com/wealthsupernova/supernova/internal/media"
	"github.com/wealthsupernova/supernova/internal/metrics"
	"github.com/wealthsupernova/supernova/internal/middleware"
	"github.com/wealthsupernova/supernova/internal/server"
	"github.com/wealthsupernova/supernova/internal/subscriber"
)

const (
	drainDelay      = 5 * time.Second
	metricsInterval = 30 * time.Second
	signupsPerHour  = 10
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string, migrate bool) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := core.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if migrate {
		if err := db.MigrateUp(ctx); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	s3Client, err := media.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	store := media.NewS3Store(s3Client, cfg.Storage)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized", "algorithm", "ES256")

	accountSvc := account.NewService(account.NewRepository(db.DB), logger)
	accountHandler := account.NewHandler(accountSvc)

	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		jwtManager,
		accountSvc,
		auth.NewRedisBlacklist(redis.Client),
		logger,
	)
	authHandler := auth.NewHandler(authSvc)

	articleSvc := article.NewService(article.NewRepository(db.DB), logger)
	articleHandler := article.NewHandler(articleSvc)

	bookmarkHandler := bookmark.NewHandler(bookmark.NewService(bookmark.NewRepository(db.DB)))

	mediaHandler := media.NewHandler(
		media.NewUploader(store, cfg.Storage.MaxUploadSize, logger),
	)

	dispatchSvc := dispatch.NewService(
		articleSvc,
		dispatch.NewRepository(db.DB),
		dispatch.NewSender(cfg.Email, logger),
		dispatch.NewRenderer(cfg.Site.BaseURL),
		dispatch.NewRedisLocker(redis.Client),
		cfg.Dispatch,
		logger,
	)
	dispatchHandler := dispatch.NewHandler(dispatchSvc)

	subscriberHandler := subscriber.NewHandler(
		subscriber.NewService(subscriber.NewRepository(db.DB), dispatchSvc, logger),
	)

	statsRepo := admin.NewRepository(db.DB)
	collector := metrics.NewCollector(statsRepo, metricsInterval, logger)
	collector.Start(ctx)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Content:    statsRepo,
		Pruner:     authSvc,
	})

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
		health.Dependency{Name: "storage", Checker: store, Optional: true},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.Limit(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Handle("/metrics", metrics.Handler())
	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	optionalAuth := middleware.OptionalAuth(authSvc)
	adminOnly := middleware.RequireAdmin
	tiered := middleware.TieredRateLimiter(redis.Client, middleware.DefaultTiers)
	signupLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerHour(signupsPerHour, signupsPerHour),
		Name:     "signup",
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	}).Handler

	// Reader routes run the tiered limiter after the token is read.
	reader := chi.Chain(optionalAuth, tiered).Handler
	member := chi.Chain(authenticator, tiered).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		articleHandler.RegisterRoutes(r, reader, member)
		accountHandler.RegisterRoutes(r, member)
		bookmarkHandler.RegisterRoutes(r, member)
		subscriberHandler.RegisterRoutes(r, signupLimiter)

		articleHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		accountHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		mediaHandler.RegisterRoutes(r, authenticator, adminOnly)
		dispatchHandler.RegisterRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		collector.Stop()
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	collector.Stop()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}
