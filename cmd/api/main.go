package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrilink/agrilink-backend/api/routes"
	"github.com/agrilink/agrilink-backend/internal/actors"
	"github.com/agrilink/agrilink-backend/internal/assignment"
	"github.com/agrilink/agrilink-backend/internal/delivery"
	"github.com/agrilink/agrilink-backend/internal/earnings"
	"github.com/agrilink/agrilink-backend/internal/geo"
	"github.com/agrilink/agrilink-backend/internal/notifications"
	"github.com/agrilink/agrilink-backend/internal/orders"
	"github.com/agrilink/agrilink-backend/internal/payments"
	"github.com/agrilink/agrilink-backend/internal/settlement"
	"github.com/agrilink/agrilink-backend/pkg/config"
	"github.com/agrilink/agrilink-backend/pkg/db"
	"github.com/agrilink/agrilink-backend/pkg/geocode"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/metrics"
	"github.com/agrilink/agrilink-backend/pkg/migrate"
	"github.com/agrilink/agrilink-backend/pkg/outbox"
	"github.com/agrilink/agrilink-backend/pkg/redis"
	"github.com/agrilink/agrilink-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	geocodeClient := geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithAPIKey(cfg.Geocode.APIKey),
		geocode.WithHTTPClient(&http.Client{Timeout: cfg.Geocode.Timeout}),
	)
	geoResolver, err := geo.NewResolver(geo.ResolverParams{
		Geocoder: geocodeClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create geo resolver", err)
		os.Exit(1)
	}

	assignmentService, err := assignment.NewService(assignment.ServiceParams{
		Repo:   assignment.NewRepository(dbClient.DB()),
		Config: cfg.Assignment,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	feePolicy := earnings.NewFeePolicy(cfg.DeliveryFee.PerKmRate, cfg.DeliveryFee.LocalFeeMin, cfg.DeliveryFee.LocalFeeMax)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	metricsRegistry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(metricsRegistry)

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Tx:         dbClient,
		Repo:       settlement.NewRepository(dbClient.DB()),
		Assignment: assignmentService,
		FeePolicy:  feePolicy,
		Outbox:     outboxService,
		Metrics:    settlementMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		Tx:         dbClient,
		Repo:       ordersRepo,
		Settlement: settlementService,
		Resolver:   geoResolver,
		FeePolicy:  feePolicy,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Gateway: squareClient,
		Orders:  ordersRepo,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookService, err := payments.NewWebhookService(payments.WebhookServiceParams{
		Settlement: settlementService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Eventing.IdempotencyTTL, "payment-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	deliveryService, err := delivery.NewService(delivery.ServiceParams{
		Tx:     dbClient,
		Repo:   delivery.NewRepository(dbClient.DB()),
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	actorsService, err := actors.NewService(actors.ServiceParams{
		Tx:         dbClient,
		Repo:       actors.NewRepository(dbClient.DB()),
		Resolver:   geoResolver,
		Separation: assignmentService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create actors service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			metricsRegistry,
			ordersService,
			paymentsService,
			webhookService,
			webhookGuard,
			squareClient,
			deliveryService,
			actorsService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
