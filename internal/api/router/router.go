package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sr22fit/checkout-web/internal/http/handlers"
	httpmiddleware "github.com/sr22fit/checkout-web/internal/http/middleware"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Checkout           *handlers.CheckoutHandler
	Live               http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// LookupLimiter throttles the phone lookup endpoints per client.
	LookupLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Get("/", cfg.Checkout.Mount)
	r.Route("/checkout", func(r chi.Router) {
		if len(cfg.CORSAllowedOrigins) > 0 {
			r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
		}
		r.Get("/", cfg.Checkout.Show)
		r.Post("/service", cfg.Checkout.SelectService)
		r.Post("/client", cfg.Checkout.UpdateClient)
		r.Post("/submit", cfg.Checkout.Submit)

		r.Group(func(r chi.Router) {
			if cfg.LookupLimiter != nil {
				r.Use(httpmiddleware.RateLimit(cfg.LookupLimiter))
			}
			r.Post("/lookup", cfg.Checkout.Lookup)
			if cfg.Live != nil {
				r.Handle("/live", cfg.Live)
			}
		})
	})

	return r
}
