package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/innohealth/notify-engine/internal/channel"
	"github.com/innohealth/notify-engine/internal/config"
	"github.com/innohealth/notify-engine/internal/content"
	"github.com/innohealth/notify-engine/internal/directory"
	"github.com/innohealth/notify-engine/internal/dispatch"
	"github.com/innohealth/notify-engine/internal/handler"
	"github.com/innohealth/notify-engine/internal/infra/postgresql"
	"github.com/innohealth/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/innohealth/notify-engine/internal/infra/redis"
	"github.com/innohealth/notify-engine/internal/observability"
	"github.com/innohealth/notify-engine/internal/queue"
	"github.com/innohealth/notify-engine/internal/repository"
	"github.com/innohealth/notify-engine/internal/service"
	"github.com/innohealth/notify-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(rabbitMQ)
	defer publisher.Close()

	dispatcher, err := buildDispatcher(cfg, publisher, limiter, logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	store := repository.NewGormNotificationStore(db)

	orchestrator, err := service.NewOrchestrator(store, dispatcher, cfg.SweepLimit, logger)
	if err != nil {
		logger.Fatal("orchestrator initialization failed", zap.Error(err))
	}

	sweeper, err := service.NewSweeper(orchestrator, time.Duration(cfg.SweepIntervalSec)*time.Second, logger)
	if err != nil {
		logger.Fatal("sweeper initialization failed", zap.Error(err))
	}
	sweeper.SetMetrics(metrics)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		if err := sweeper.Start(sweepCtx); err != nil {
			logger.Error("sweeper stopped with error", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})

	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterNotificationRoutes(app, orchestrator); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("notify-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	stopSweeper()
	select {
	case <-sweeperDone:
	case <-time.After(shutdownTimeout):
		logger.Warn("sweeper did not stop in time")
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func buildDispatcher(
	cfg *config.Config,
	publisher queue.Publisher,
	limiter *infraredis.RedisRateLimiter,
	logger *zap.Logger,
) (*dispatch.Dispatcher, error) {
	dir, err := directory.NewHTTPDirectory(cfg.DirectoryURL)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}

	resolver, err := directory.NewResolver(dir)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	composer, err := content.NewComposer(content.DefaultTemplates(), content.NewSubstitutionRenderer())
	if err != nil {
		return nil, fmt.Errorf("composer: %w", err)
	}

	pushTransport, err := channel.NewWebhookTransport(cfg.PushGatewayURL)
	if err != nil {
		return nil, fmt.Errorf("push transport: %w", err)
	}
	emailTransport, err := channel.NewWebhookTransport(cfg.EmailRelayURL)
	if err != nil {
		return nil, fmt.Errorf("email transport: %w", err)
	}

	pushSender, err := channel.NewPushSender(pushTransport, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("push sender: %w", err)
	}
	emailSender, err := channel.NewEmailSender(emailTransport, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	inAppSender, err := channel.NewInAppSender(publisher, logger)
	if err != nil {
		return nil, fmt.Errorf("in-app sender: %w", err)
	}

	return dispatch.NewDispatcher(
		resolver,
		composer,
		[]channel.Sender{pushSender, emailSender, inAppSender},
		time.Duration(cfg.ChannelTimeoutSec)*time.Second,
		logger,
	)
}
