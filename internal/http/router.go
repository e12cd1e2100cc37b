package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	RateLimitRPS       float64
	RateLimitBurst     int
}

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Session  *SessionHandler
	Checkout *CheckoutHandler
}

// NewRouter wires the gateway routes and middleware.
func NewRouter(cfg RouterConfig, h Handlers, m *metrics.Metrics, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(Instrument(m))
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger).Handler)
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(MaxBodySize(cfg.MaxRequestBodySize))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{product_id}", h.Products.Get)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.Session.GetSession)
			r.Post("/login", h.Session.Login)
			r.Post("/logout", h.Session.Logout)
			r.Post("/resend-confirmation", h.Session.ResendConfirmation)
			r.Get("/orders", h.Session.Orders)
			r.Get("/profile", h.Session.GetProfile)
			r.Put("/profile", h.Session.UpdateProfile)
		})
		r.Route("/checkout/orders", func(r chi.Router) {
			r.Post("/", h.Checkout.CreateOrder)
			r.Get("/pending", h.Checkout.Pending)
			r.Post("/{order_id}/capture", h.Checkout.Capture)
		})
	})

	return otelhttp.NewHandler(r, "storefront-gateway")
}
