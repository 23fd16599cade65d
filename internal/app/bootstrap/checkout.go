package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sr22fit/checkout-web/internal/api/router"
	"github.com/sr22fit/checkout-web/internal/checkout"
	appconfig "github.com/sr22fit/checkout-web/internal/config"
	"github.com/sr22fit/checkout-web/internal/gateway"
	"github.com/sr22fit/checkout-web/internal/http/handlers"
	httpmiddleware "github.com/sr22fit/checkout-web/internal/http/middleware"
	"github.com/sr22fit/checkout-web/internal/observability/metrics"
	"github.com/sr22fit/checkout-web/internal/sr22api"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// Checkout is the wired web service.
type Checkout struct {
	Handler  http.Handler
	Registry *handlers.Registry
}

// CheckoutDeps lets callers swap the metrics registry and snapshot store.
type CheckoutDeps struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Store      checkout.SnapshotStore
}

// BuildCheckout wires the upstream clients, session registry, handlers and
// router from cfg. Background work (rate-limit eviction) stops with ctx;
// the caller runs Registry.Run for session sweeping.
func BuildCheckout(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, deps CheckoutDeps) (*Checkout, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Store == nil {
		deps.Store = checkout.NewMemorySnapshotStore(cfg.SessionTTL)
	}

	m := metrics.NewCheckoutMetrics(deps.Registerer)
	api := sr22api.NewClient(sr22api.Options{
		AuthTokenURL:      cfg.AuthTokenURL,
		ProductsURL:       cfg.ProductsURL,
		CustomerLookupURL: cfg.CustomerLookupURL,
		APIKey:            cfg.InternalAPIKey,
		Signature:         cfg.SignatureHeader,
		Timeout:           cfg.RequestTimeout,
		Logger:            logger.With("component", "sr22api"),
		Metrics:           m,
	})
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.RequestTimeout, logger.With("component", "gateway")).WithMetrics(m)

	registry := handlers.NewRegistry(handlers.RegistryOptions{
		Session: checkout.Options{
			Catalog:         api,
			Customers:       api,
			Gateway:         gw,
			PublicBaseURL:   cfg.PublicBaseURL,
			LockPreselected: cfg.LockPreselectedService,
			Locale:          cfg.DisplayLocale,
			Logger:          logger.With("component", "checkout"),
			Metrics:         m,
		},
		Store:  deps.Store,
		TTL:    cfg.SessionTTL,
		Logger: logger,
		Gauge:  m,
	})

	handler := router.New(&router.Config{
		Logger:             logger,
		Checkout:           handlers.NewCheckoutHandler(registry, cfg.PublicBaseURL, logger),
		Live:               handlers.NewLiveHandler(registry, logger),
		MetricsHandler:     promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LookupLimiter:      httpmiddleware.NewRateLimiter(ctx, cfg.LookupRatePerSecond, cfg.LookupRateBurst),
	})
	return &Checkout{Handler: handler, Registry: registry}, nil
}
