package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packdrop-backend/api/controllers"
	deliverycontrollers "github.com/angelmondragon/packdrop-backend/api/controllers/deliveries"
	drivercontrollers "github.com/angelmondragon/packdrop-backend/api/controllers/drivers"
	earningcontrollers "github.com/angelmondragon/packdrop-backend/api/controllers/earnings"
	ordercontrollers "github.com/angelmondragon/packdrop-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/packdrop-backend/api/controllers/webhooks"
	"github.com/angelmondragon/packdrop-backend/api/middleware"
	"github.com/angelmondragon/packdrop-backend/internal/deliveries"
	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/earnings"
	"github.com/angelmondragon/packdrop-backend/internal/orders"
	"github.com/angelmondragon/packdrop-backend/internal/payouts"
	"github.com/angelmondragon/packdrop-backend/pkg/auth/session"
	"github.com/angelmondragon/packdrop-backend/pkg/config"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/packdrop-backend/pkg/redis"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Tokens      middleware.TokenVerifier
	Sessions    session.AccessSessionChecker
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Deliveries  deliveries.Service
	Drivers     drivers.Service
	Earnings    earnings.Service
	Payouts     payouts.Service
	Orders      orders.Service
	Webhooks    webhookcontrollers.GatewayWebhookService
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Gateway callbacks are public and authenticated by the shared hash.
	r.Post("/api/v1/payments/webhook", webhookcontrollers.PaymentWebhook(deps.Webhooks, cfg.Webhooks.SecretHash, logg))
	r.Post("/api/v1/payouts/webhook", webhookcontrollers.TransferWebhook(deps.Webhooks, cfg.Webhooks.SecretHash, logg))

	var sessions session.AccessSessionChecker
	if cfg.JWT.RequireSession {
		sessions = deps.Sessions
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Tokens, sessions, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		admin := middleware.RequireRoles(logg, enums.UserRoleAdmin)
		driver := middleware.RequireRoles(logg, enums.UserRoleDriver)
		vendor := middleware.RequireRoles(logg, enums.UserRoleVendor)

		r.Route("/deliveries", func(r chi.Router) {
			r.With(middleware.RequireRoles(logg, enums.UserRoleAdmin, enums.UserRoleVendor)).
				Post("/", deliverycontrollers.Create(deps.Deliveries, logg))
			r.Get("/{id}", deliverycontrollers.Get(deps.Deliveries, logg))
			r.With(middleware.RequireRoles(logg, enums.UserRoleAdmin, enums.UserRoleVendor)).
				Get("/{id}/available-drivers", deliverycontrollers.AvailableDrivers(deps.Deliveries, logg))
			r.With(middleware.RequireRoles(logg, enums.UserRoleAdmin, enums.UserRoleVendor, enums.UserRoleDriver)).
				Post("/{id}/assign-driver", deliverycontrollers.AssignDriver(deps.Deliveries, logg))
			r.With(middleware.RequireRoles(logg, enums.UserRoleDriver, enums.UserRoleAdmin)).
				Patch("/{id}/status", deliverycontrollers.UpdateStatus(deps.Deliveries, logg))
			r.With(driver).Post("/{id}/proof", deliverycontrollers.SubmitProof(deps.Deliveries, logg))
			r.With(middleware.RequireRoles(logg, enums.UserRoleCustomer)).
				Post("/{id}/rate", deliverycontrollers.Rate(deps.Deliveries, logg))
		})

		r.Route("/drivers/me", func(r chi.Router) {
			r.Use(driver)
			r.Patch("/location", drivercontrollers.UpdateLocation(deps.Drivers, logg))
			r.Patch("/availability", drivercontrollers.SetAvailability(deps.Drivers, logg))
		})

		r.Route("/earnings", func(r chi.Router) {
			r.With(admin).Post("/calculate/{deliveryId}", earningcontrollers.Calculate(deps.Earnings, logg))
			r.With(driver).Get("/driver", earningcontrollers.DriverSummary(deps.Earnings, logg))
			r.With(vendor).Get("/vendor", earningcontrollers.VendorSummary(deps.Earnings, logg))
			r.With(middleware.RequireRoles(logg, enums.UserRoleDriver, enums.UserRoleVendor)).
				Get("/balance", earningcontrollers.Balance(deps.Payouts, logg))
			r.With(driver).Post("/driver/payout", earningcontrollers.RequestPayout(deps.Payouts, enums.PayoutUserDriver, logg))
			r.With(vendor).Post("/vendor/payout", earningcontrollers.RequestPayout(deps.Payouts, enums.PayoutUserVendor, logg))
			r.With(admin).Get("/payout-requests", earningcontrollers.ListPayoutRequests(deps.Payouts, logg))
			r.With(admin).Patch("/payout-requests/{id}", earningcontrollers.ProcessPayoutRequest(deps.Payouts, logg))
		})

		r.Route("/orders/{orderId}/items", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.UserRoleVendor, enums.UserRoleCustomer))
			r.Post("/", ordercontrollers.AddItem(deps.Orders, logg))
			r.Patch("/{itemId}", ordercontrollers.UpdateItem(deps.Orders, logg))
			r.Delete("/{itemId}", ordercontrollers.RemoveItem(deps.Orders, logg))
		})
	})

	return r
}
