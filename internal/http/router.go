// Package http serves the storefront backend: cart, checkout, payment and
// tracking pages as JSON endpoints. Page navigations are 303 redirects.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/events"
	"github.com/fjod/quickmarket/internal/payment"
	"github.com/fjod/quickmarket/internal/session"
	"github.com/fjod/quickmarket/internal/storage"
	"github.com/fjod/quickmarket/internal/tracking"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxRequestBodySize = 1 << 20

// API is the remote storefront API as used by the handlers.
type API interface {
	payment.API
	tracking.Fetcher
	ListLocations(ctx context.Context) ([]domain.Location, error)
	SearchSuggestions(ctx context.Context, query string) ([]domain.SearchSuggestion, error)
}

type Options struct {
	RequestTimeout      time.Duration
	PaymentSettleDelay  time.Duration
	PaymentDisplayDelay time.Duration
	TrackingInterval    time.Duration
	// FallbackEmail is used for payment init when the visitor is a guest.
	FallbackEmail string
}

type Server struct {
	store     storage.Store
	api       API
	sessions  *session.Manager
	payments  *payment.Registry
	publisher events.Publisher
	log       *slog.Logger
	opts      Options
}

func NewServer(store storage.Store, client API, sessions *session.Manager, publisher events.Publisher, log *slog.Logger, opts Options) *Server {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		store:     store,
		api:       client,
		sessions:  sessions,
		payments:  payment.NewRegistry(time.Hour),
		publisher: publisher,
		log:       log,
		opts:      opts,
	}
}

// Handler builds the router wrapped in otel instrumentation.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.getCart)
				r.Post("/items", s.addCartItem)
				r.Put("/items/{product_id}", s.updateCartItem)
				r.Delete("/items/{product_id}", s.removeCartItem)
			})

			r.Post("/checkout/quote", s.quoteCheckout)
			r.Post("/checkout", s.startCheckout)

			r.Get("/locations", s.listLocations)
			r.Route("/preferences", func(r chi.Router) {
				r.Get("/area", s.getSelectedArea)
				r.Put("/area", s.putSelectedArea)
				r.Get("/plan", s.getSelectedPlan)
				r.Put("/plan", s.putSelectedPlan)
			})
			r.Route("/search", func(r chi.Router) {
				r.Get("/suggestions", s.searchSuggestions)
				r.Get("/history", s.getSearchHistory)
				r.Delete("/history", s.clearSearchHistory)
			})
		})

		// Payment and tracking outlive the API timeout: the payment flow waits
		// on its own delays and the tracking stream lasts as long as the page.
		r.Route("/payment", func(r chi.Router) {
			r.Get("/", s.mountPayment)
			r.Post("/pay", s.pay)
			r.Post("/retry", s.retryPayment)
			r.Get("/success", s.paymentSuccess)
			r.Get("/failure", s.paymentFailure)
		})

		r.Get("/orders/{order_id}/tracking", s.trackingPage)
		r.Get("/orders/{order_id}/tracking/stream", s.trackingStream)
		r.Get("/orders/tracking", s.trackingMissingOrder)
	})

	return otelhttp.NewHandler(r, "storefront")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.WarnContext(ctx, "health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
