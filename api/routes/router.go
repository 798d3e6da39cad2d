package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/motorhub/marketplace-backend/api/controllers"
	"github.com/motorhub/marketplace-backend/api/controllers/autobilling"
	subscriptioncontrollers "github.com/motorhub/marketplace-backend/api/controllers/subscriptions"
	"github.com/motorhub/marketplace-backend/api/middleware"
	"github.com/motorhub/marketplace-backend/internal/notifications"
	"github.com/motorhub/marketplace-backend/internal/plans"
	subscriptionsvc "github.com/motorhub/marketplace-backend/internal/subscriptions"
	"github.com/motorhub/marketplace-backend/pkg/config"
	"github.com/motorhub/marketplace-backend/pkg/db"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	"github.com/motorhub/marketplace-backend/pkg/logger"
	"github.com/motorhub/marketplace-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	catalog *plans.Catalog,
	subscriptionsService subscriptionsvc.Service,
	notificationsService notifications.Service,
	lifecycleEngine autobilling.Engine,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["database"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	triggerPolicy := middleware.NewRateLimitPolicy(
		"autobilling",
		cfg.Cron.TriggerRateWindow,
		cfg.Cron.TriggerRateLimit,
	)

	r.Route("/api/subscriptions/auto-billing", func(r chi.Router) {
		r.Use(middleware.TriggerRecoverer(logg))
		r.Use(middleware.CronSecret(cfg.Cron.SecretKey, logg))
		if redisClient != nil {
			r.Use(middleware.RateLimit(triggerPolicy, redisClient, logg))
		}
		r.Post("/", autobilling.Run(lifecycleEngine, nil, logg))
		r.Get("/", autobilling.Status(lifecycleEngine, nil, logg))
	})

	r.Get("/api/v1/plans", controllers.PlansList(catalog))

	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/", subscriptioncontrollers.Create(subscriptionsService, logg))
		r.Get("/me", subscriptioncontrollers.Me(subscriptionsService, logg))
		r.Put("/me/billing-customer", subscriptioncontrollers.SetBillingCustomer(subscriptionsService, logg))
		r.Post("/me/cancel", subscriptioncontrollers.Cancel(subscriptionsService, logg))
	})

	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.ListNotifications(notificationsService, logg))
		r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
	})

	r.Route("/api/admin/v1/subscriptions", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Post("/{subscriptionId}/reactivate", subscriptioncontrollers.AdminReactivate(subscriptionsService, logg))
		r.Post("/{subscriptionId}/cancel", subscriptioncontrollers.AdminCancel(subscriptionsService, logg))
	})

	return r
}
