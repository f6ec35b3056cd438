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
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/admin"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/auth"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/config"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/health"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/metrics"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/middleware"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/migrate"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/modules"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/provider"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/server"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/user"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/workspace"
)

const shutdownGrace = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
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

	logger := setupLogger(cfg.Log, cfg.IsDevelopment())
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
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}()
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	if !cfg.IsProduction() {
		created, keyErr := auth.EnsureKeyPair(
			cfg.JWT.PrivateKeyPath,
			cfg.JWT.PublicKeyPath,
		)
		if keyErr != nil {
			return keyErr
		}
		if created {
			logger.Warn("generated development signing key",
				"path", cfg.JWT.PrivateKeyPath,
			)
		}
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	m := metrics.New()

	applied, err := migrate.NewSchema(db.DB, logger).Up(ctx)
	if err != nil {
		return err
	}
	logger.Info("core schema ready", "applied", applied)

	recorder := activity.NewRecorder(activity.NewRepository(db.DB), logger)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, jwtManager, userSvc, auth.Options{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		Logger:            logger,
	})
	authHandler := auth.NewHandler(authSvc)

	workspaceRepo := workspace.NewRepository(db.DB)
	workspaceSvc := workspace.NewService(workspaceRepo, userSvc, recorder, logger)
	workspaceHandler := workspace.NewHandler(workspaceSvc)
	resolver := workspace.NewResolver(workspaceRepo, cfg.Workspace.Header)

	authenticator := middleware.Authenticator(jwtManager)
	adminOnly := middleware.RequireRole(userSvc, user.RoleAdmin)

	generationLimiter := middleware.NewRateLimiter(
		redis.Client,
		middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.GenerationRequests,
				cfg.RateLimit.GenerationRequests,
				cfg.RateLimit.Window,
			),
			KeyFunc:  middleware.KeyByWorkspace,
			FailOpen: true,
			Scope:    "generation",
			Metrics:  m,
			Logger:   logger,
		},
	)
	defer generationLimiter.Close()

	registry := module.NewRegistry(module.Deps{
		DB:                db.DB,
		Logger:            logger,
		Generator:         provider.New(cfg.Provider),
		Activity:          recorder,
		Metrics:           m,
		GenerationLimiter: generationLimiter.Handler,
	}, authenticator, resolver.Middleware)

	if err := registry.Load(ctx, modules.All(), cfg.Modules.Disabled); err != nil {
		return err
	}

	backfill, err := migrate.NewBackfill(
		db.DB,
		cfg.Migration,
		registry.TenantTables(),
		logger,
		m,
	)
	if err != nil {
		return err
	}
	report := backfill.Run(ctx)
	logger.Info("tenant backfill finished",
		"altered", len(report.Altered),
		"filled", len(report.Filled),
		"pending", len(report.Pending),
		"repaired", len(report.Repaired),
		"indexed", len(report.Indexed),
		"failed", len(report.Failed),
	)

	registry.Init(ctx)

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Modules:    registry.Status,
		Backfill:   &report,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
		ServiceName:   cfg.Otel.ServiceName,
	})

	router := srv.Router()

	globalLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerWindow(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Burst,
			cfg.RateLimit.Window,
		),
		FailOpen: true,
		Metrics:  m,
		Logger:   logger,
	})
	defer globalLimiter.Close()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))
	router.Use(globalLimiter.Handler)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, m.Handler())
	}

	var mountErr error
	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		workspaceHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)

		r.Get("/capabilities", registry.ManifestHandler())

		mountErr = registry.Mount(r)
	})
	if mountErr != nil {
		return mountErr
	}

	sweeper := auth.NewSweeper(
		authSvc,
		cfg.Auth.SweepInterval,
		logger,
		m.RefreshTokensSwept,
	)
	if err := sweeper.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			cfg.Server.ShutdownTimeout+cfg.Server.DrainDelay+shutdownGrace,
		)
		defer cancel()

		return srv.Shutdown(shutdownCtx, cfg.Server.DrainDelay)
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("server stopped with error", "error", runErr)
	}

	cleanupCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout,
	)
	defer cancel()

	if err := sweeper.Stop(cleanupCtx); err != nil {
		logger.Error("sweeper stop error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(cleanupCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	logger.Info("application stopped")
	return runErr
}

func setupLogger(cfg config.LogConfig, addSource bool) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
