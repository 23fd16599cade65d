package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sr22fit/checkout-web/internal/checkout"
	"github.com/sr22fit/checkout-web/internal/gateway"
	"github.com/sr22fit/checkout-web/internal/http/handlers"
	httpmiddleware "github.com/sr22fit/checkout-web/internal/http/middleware"
	"github.com/sr22fit/checkout-web/internal/observability/metrics"
	"github.com/sr22fit/checkout-web/internal/sr22api"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

type staticCatalog []sr22api.Service

func (c staticCatalog) ListServices(context.Context) ([]sr22api.Service, error) { return c, nil }

type noCustomers struct{}

func (noCustomers) FindCustomerByPhone(context.Context, string) (*sr22api.Customer, error) {
	return nil, sr22api.ErrCustomerNotFound
}

type okGateway struct{}

func (okGateway) CreateCheckoutSession(context.Context, gateway.CheckoutSessionRequest) (*gateway.CheckoutSession, error) {
	return &gateway.CheckoutSession{ID: "cs_1", URL: "https://pay.example/s/1"}, nil
}

func newTestRouter(t *testing.T, burst int) http.Handler {
	t.Helper()

	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetrics(reg)
	registry := handlers.NewRegistry(handlers.RegistryOptions{
		Session: checkout.Options{
			Catalog:       staticCatalog{{ID: "1", Name: "Oil Change", Amount: 50000, Currency: "mxn"}},
			Customers:     noCustomers{},
			Gateway:       okGateway{},
			PublicBaseURL: "http://localhost:4173",
			Metrics:       m,
		},
		TTL:    time.Minute,
		Logger: logger,
		Gauge:  m,
	})
	t.Cleanup(registry.CloseAll)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return New(&Config{
		Logger:             logger,
		Checkout:           handlers.NewCheckoutHandler(registry, "http://localhost:4173", logger),
		Live:               handlers.NewLiveHandler(registry, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://sr22.fit"},
		LookupLimiter:      httpmiddleware.NewRateLimiter(ctx, 0.001, burst),
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, 5)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterMountAndMetrics(t *testing.T) {
	router := newTestRouter(t, 5)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?status=cancel", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), checkout.MsgStatusCancel)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sr22_checkout_active_sessions 1")
}

func TestRouterLookupIsRateLimited(t *testing.T) {
	router := newTestRouter(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout/lookup", strings.NewReader(`{"phone":"555"}`))
		req.RemoteAddr = "198.51.100.4:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	// No session cookie: the handler answers 404 until the limiter trips.
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

func TestRouterCORSPreflightOnCheckout(t *testing.T) {
	router := newTestRouter(t, 5)

	req := httptest.NewRequest(http.MethodOptions, "/checkout/lookup", nil)
	req.Header.Set("Origin", "https://sr22.fit")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://sr22.fit", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterSubmitRedirects(t *testing.T) {
	router := newTestRouter(t, 5)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?id=7", nil))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodPost, "/checkout/submit", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "https://pay.example/s/1", rr.Header().Get("Location"))
}
