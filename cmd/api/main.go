package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/ai"
	httptransport "github.com/deskhub/support-service/internal/api/http"
	"github.com/deskhub/support-service/internal/api/http/handlers"
	"github.com/deskhub/support-service/internal/auth"
	"github.com/deskhub/support-service/internal/config"
	"github.com/deskhub/support-service/internal/events"
	"github.com/deskhub/support-service/internal/observability"
	"github.com/deskhub/support-service/internal/persistence"
	"github.com/deskhub/support-service/internal/queue"
	"github.com/deskhub/support-service/internal/repository"
	"github.com/deskhub/support-service/internal/service"
	"github.com/deskhub/support-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	store := repository.NewStore(pg.Pool)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	broadcaster := events.NewRedisBroadcaster(rdb.Client, logger)
	notifyQueue := queue.NewRedisQueue(rdb.Client, cfg.Notification.QueueKey, cfg.Notification.DequeueTimeout)
	var mailer service.Mailer
	if cfg.Notification.WebhookURL != "" {
		mailer = service.NewWebhookMailer(cfg.Notification.WebhookURL)
	}
	notifications := service.NewNotificationService(store, notifyQueue, mailer, logger, cfg.Notification)

	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		Store:       store,
		Broadcaster: broadcaster,
		Notifier:    notifications,
		Metrics:     metrics,
		Logger:      logger,
	})
	availability := service.NewAvailabilityService(service.AvailabilityDependencies{
		Store:          store,
		Assigner:       assignments,
		Metrics:        metrics,
		Logger:         logger,
		SweepBatchSize: cfg.Scheduler.SweepBatchSize,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		Store:       store,
		Assigner:    assignments,
		Recomputer:  availability,
		Broadcaster: broadcaster,
		Notifier:    notifications,
		Metrics:     metrics,
		Logger:      logger,
	})
	analytics := service.NewAnalyticsService(store, logger)
	authService := service.NewAuthService(cfg.Auth, store.Users())
	drafts := service.NewDraftService(store, ai.NewGeminiClient(cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel))

	notificationWorker := worker.NewNotificationWorker(notifyQueue, notifications, logger, metrics, worker.Options{
		Workers:     cfg.Notification.Workers,
		MaxAttempts: cfg.Notification.MaxAttempts,
		BackoffBase: cfg.Notification.BackoffBase(),
		BackoffCap:  cfg.Notification.BackoffCap(),
	})
	notificationWorker.Start(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users())

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments, drafts),
		Availability:   handlers.NewAvailabilityHandler(availability),
		Analytics:      handlers.NewAnalyticsHandler(analytics),
		Stream:         handlers.NewStreamHandler(tickets, broadcaster, logger),
		AuthMiddleware: authMiddleware,
		Registry:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	notificationWorker.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
