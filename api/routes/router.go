package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrilink/agrilink-backend/api/controllers"
	"github.com/agrilink/agrilink-backend/api/middleware"
	"github.com/agrilink/agrilink-backend/internal/actors"
	"github.com/agrilink/agrilink-backend/internal/delivery"
	"github.com/agrilink/agrilink-backend/internal/notifications"
	"github.com/agrilink/agrilink-backend/internal/orders"
	"github.com/agrilink/agrilink-backend/internal/payments"
	"github.com/agrilink/agrilink-backend/pkg/config"
	"github.com/agrilink/agrilink-backend/pkg/db"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsRegistry *prometheus.Registry,
	ordersService orders.Service,
	paymentsService payments.Service,
	webhookService controllers.PaymentWebhookService,
	webhookGuard controllers.PaymentWebhookGuard,
	gatewaySigner controllers.GatewaySigner,
	deliveryService delivery.Service,
	actorsService actors.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	webhookPolicy := middleware.NewRateLimitPolicy(
		"webhook",
		cfg.RateLimit.WebhookWindow,
		cfg.RateLimit.WebhookIPLimit,
	)
	registerPolicy := middleware.NewRateLimitPolicy(
		"register",
		cfg.RateLimit.RegisterWindow,
		cfg.RateLimit.RegisterIPLimit,
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness))
	})

	if metricsRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.RateLimit(webhookPolicy, redisClient, logg)).
			Post("/payments", controllers.PaymentWebhook(webhookService, gatewaySigner, webhookGuard, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(ordersService, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(ordersService, logg))
			r.Post("/{orderID}/payment", controllers.ChargeOrderPayment(paymentsService, logg))
			r.Post("/{orderID}/delivery/approve", controllers.CustomerApproveDelivery(deliveryService, logg))
			r.Post("/{orderID}/delivery/reject", controllers.CustomerRejectDelivery(deliveryService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.With(middleware.RateLimit(registerPolicy, redisClient, logg)).
			Post("/v1/agents/register", controllers.RegisterAgent(actorsService, logg))
		r.With(middleware.RateLimit(registerPolicy, redisClient, logg)).
			Post("/v1/coordinators/register", controllers.RegisterCoordinator(actorsService, logg))

		r.Route("/v1/agent", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorRoleDeliveryAgent, logg))
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", controllers.AgentJobs(deliveryService, logg))
				r.Post("/{jobID}/accept", controllers.AgentAdvanceJob(deliveryService, enums.DeliveryJobStatusAccepted, logg))
				r.Post("/{jobID}/pickup", controllers.AgentAdvanceJob(deliveryService, enums.DeliveryJobStatusPickedUp, logg))
				r.Post("/{jobID}/request-delivery", controllers.AgentAdvanceJob(deliveryService, enums.DeliveryJobStatusDeliveryRequested, logg))
			})
		})
	})

	return r
}
