package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/agrilink/agrilink-backend/internal/consumers/rewards"
	"github.com/agrilink/agrilink-backend/internal/notifications"
	"github.com/agrilink/agrilink-backend/pkg/config"
	"github.com/agrilink/agrilink-backend/pkg/db"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/migrate"
	"github.com/agrilink/agrilink-backend/pkg/outbox/idempotency"
	"github.com/agrilink/agrilink-backend/pkg/pubsub"
	"github.com/agrilink/agrilink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	orderNotifications, err := notifications.NewConsumer(notificationsRepo, pubsubClient.NotificationSubscription(), idempotencyManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order notification consumer", err)
		os.Exit(1)
	}

	deliveryNotifications, err := notifications.NewConsumer(notificationsRepo, pubsubClient.DeliverySubscription(), idempotencyManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery notification consumer", err)
		os.Exit(1)
	}

	rewardsConsumer, err := rewards.NewConsumer(rewards.NewRepository(dbClient.DB()), idempotencyManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create rewards consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:                cfg,
		Logger:                logg,
		DB:                    dbClient,
		Redis:                 redisClient,
		PubSub:                pubsubClient,
		OrderNotifications:    orderNotifications,
		DeliveryNotifications: deliveryNotifications,
		Rewards:               rewardsConsumer,
		RewardsSubscription:   pubsubClient.OrdersSubscription(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
