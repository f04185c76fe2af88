package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazaarhub/bazaar-backend/api/controllers"
	ordercontrollers "github.com/bazaarhub/bazaar-backend/api/controllers/orders"
	"github.com/bazaarhub/bazaar-backend/api/middleware"
	checkoutsvc "github.com/bazaarhub/bazaar-backend/internal/checkout"
	"github.com/bazaarhub/bazaar-backend/internal/orders"
	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/redis"
	"github.com/bazaarhub/bazaar-backend/pkg/shipping"
)

// Cache is the Redis surface the HTTP layer needs.
type Cache interface {
	redis.IdempotencyStore
	redis.RateLimiter
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP redis.Pinger,
	cache Cache,
	gatherer prometheus.Gatherer,
	checkoutService checkoutsvc.Service,
	ordersSvc orders.Service,
	shippingClient *shipping.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]redis.Pinger{
			"db":    dbP,
			"redis": cache,
		}, logg))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(cache, cfg.Checkout.IdempotencyTTL, logg),
		)

		r.Route("/checkout", func(r chi.Router) {
			r.With(middleware.CheckoutRateLimit(cache, cfg.RateLimit.CheckoutLimit, cfg.RateLimit.CheckoutWindow, logg)).
				Post("/", controllers.Checkout(checkoutService, logg))
			r.Get("/orders/{paymentRefId}", ordercontrollers.ListByPaymentRef(ordersSvc, logg))
		})

		r.Route("/orders/{orderId}/items/{itemId}", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.UserRoleSeller, enums.UserRoleAdmin)).
				Patch("/status", ordercontrollers.UpdateItemStatus(ordersSvc, logg))
			r.Post("/cancel", ordercontrollers.CancelItem(ordersSvc, logg))
		})

		r.Post("/payments/verify", ordercontrollers.VerifyPayment(ordersSvc, logg))
		r.Get("/shipping/serviceability", controllers.ShippingServiceability(shippingClient, logg))
	})

	return r
}
