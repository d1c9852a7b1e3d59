package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the router needs; handlers are built by the caller.
type Deps struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil hides /metrics
	Limiter  *RateLimiter        // nil disables rate limiting

	AccessKey     string
	SecretKey     string
	CallbackToken string

	Auth     *auth.Service
	Users    *AuthHandler
	Products *ProductsHandler
	Orders   *OrdersHandler
	Payments *PaymentsHandler
	Webhooks *WebhookHandler
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, Observe(d.Logger, d.Metrics), middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware
	}

	// public dengan API key
	r.Group(func(r chi.Router) {
		r.Use(limit, APIKeyGate(d.AccessKey, d.SecretKey))
		d.Users.RegisterPublic(r)
		d.Products.Register(r)

		// API key + bearer token
		r.Group(func(r chi.Router) {
			r.Use(RequireUser(d.Auth))
			d.Users.RegisterProtected(r)
			d.Orders.Register(r)
			d.Payments.Register(r)
		})
	})

	// callback dari payment page & gateway, tanpa API key
	r.Group(func(r chi.Router) {
		r.Use(limit)
		d.Payments.RegisterCallbacks(r)
		r.With(CallbackToken(d.CallbackToken)).Group(d.Webhooks.Register)
	})
	return r
}
