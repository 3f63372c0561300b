package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/storefront-auth/internal/api/http"
	"github.com/spec-kit/storefront-auth/internal/api/http/handlers"
	"github.com/spec-kit/storefront-auth/internal/auth"
	"github.com/spec-kit/storefront-auth/internal/config"
	"github.com/spec-kit/storefront-auth/internal/events"
	"github.com/spec-kit/storefront-auth/internal/observability"
	"github.com/spec-kit/storefront-auth/internal/persistence"
	"github.com/spec-kit/storefront-auth/internal/repository"
	"github.com/spec-kit/storefront-auth/internal/service"
	"github.com/spec-kit/storefront-auth/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	for _, warning := range cfg.Auth.Warnings() {
		logger.Warn(warning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, cfg.App, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	versions := repository.NewCachedTokenVersionStore(
		repository.NewTokenVersionStore(pool),
		redis.Handle(),
		cfg.Redis.VersionCacheTTL,
		logger,
	)

	codec, err := auth.NewCodec(cfg.Auth)
	if err != nil {
		logger.Fatal("failed to build token codec", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(codec)
	apiKeys := auth.NewAPIKeyGuard(cfg.Auth.APIKeys)

	dispatcher := events.NewInMemoryDispatcher()
	notifier := worker.NewNotificationWorker(service.NewNotificationService(logger, cfg.Notification), logger, cfg.Notification)
	notifier.Subscribe(dispatcher)
	notifier.Start()

	sessions := service.NewSessionService(codec, userRepo, versions, dispatcher, logger)
	metrics := observability.NewMetrics()
	health := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)

	public := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(public, httptransport.RouteConfig{
		Health:        health,
		Sessions:      handlers.NewSessionHandler(sessions, handlers.CookiePolicy{Secure: cfg.Auth.CookieSecure}),
		Verification:  handlers.NewVerificationHandler(sessions),
		Store:         handlers.NewStoreHandler(),
		Authenticator: authenticator,
		APIKeys:       apiKeys,
	})

	internal := httptransport.NewApp(cfg.App.Name+"-internal", logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterInternalRoutes(internal, httptransport.InternalRouteConfig{
		Health:   health,
		Internal: handlers.NewInternalHandler(sessions, metrics),
		APIKeys:  apiKeys,
	})

	listen(logger, public, cfg.App.Addr())
	listen(logger, internal, cfg.App.InternalAddr())

	waitForShutdown(logger)

	_ = public.ShutdownWithTimeout(shutdownTimeout)
	_ = internal.ShutdownWithTimeout(shutdownTimeout)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if err := notifier.Stop(flushCtx); err != nil {
		logger.Warn("notification worker shutdown", zap.Error(err))
	}
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}

func listen(logger *zap.Logger, app *fiber.App, addr string) {
	go func() {
		logger.Info("listening", zap.String("app", app.Config().AppName), zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
