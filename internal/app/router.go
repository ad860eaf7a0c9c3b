package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/food-checkout/internal/auth"
	"github.com/noah-isme/food-checkout/internal/cart"
	"github.com/noah-isme/food-checkout/internal/checkout"
	"github.com/noah-isme/food-checkout/internal/common"
	"github.com/noah-isme/food-checkout/internal/health"
	"github.com/noah-isme/food-checkout/internal/obs"
	"github.com/noah-isme/food-checkout/internal/ratelimit"
	"github.com/noah-isme/food-checkout/internal/security"
	"github.com/noah-isme/food-checkout/internal/user"
)

// NewRouter mounts health, metrics and the authenticated /api/v1 routes.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config
	cartHandler := &cart.Handler{Svc: d.Carts}
	addressHandler := &user.Handler{Service: d.Addresses}
	checkoutHandler := &checkout.Handler{Svc: d.Checkout}
	authMiddleware := auth.Middleware{Verifier: d.Verifier}
	confirmLimit := ratelimit.Handler{Limiter: d.ConfirmLimiter, Key: ratelimit.KeyByUser}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		obs.WithRoutePattern(r.Context(), "unmatched")
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "route not found", nil)
	})

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	healthHandler := health.Handler{Checker: health.Probes{Redis: d.Redis, Backend: d.Backend}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(authMiddleware.RequireAuth)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{id}", cartHandler.UpdateItem)
			c.Delete("/items/{id}", cartHandler.RemoveItem)
		})

		v.Route("/addresses", func(a chi.Router) {
			a.Get("/", addressHandler.List)
			a.Post("/", addressHandler.Create)
			a.Delete("/{addressID}", addressHandler.Delete)
		})

		v.Get("/coupons", checkoutHandler.Coupons)

		v.Route("/checkout", func(c chi.Router) {
			c.Get("/", checkoutHandler.Get)
			c.Post("/start", checkoutHandler.Start)
			c.Put("/address", checkoutHandler.SelectAddress)
			c.Put("/coupon", checkoutHandler.ApplyCoupon)
			c.Delete("/coupon", checkoutHandler.RemoveCoupon)
			c.With(confirmLimit.Middleware, d.Idempotency.Middleware).Post("/confirm", checkoutHandler.Confirm)
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
