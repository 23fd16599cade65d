package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sr22fit/checkout-web/internal/checkout"
	"github.com/sr22fit/checkout-web/internal/gateway"
	"github.com/sr22fit/checkout-web/internal/sr22api"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// upstream fakes the SR22 auth, catalog and customer services plus the
// checkout gateway behind one httptest server.
type upstream struct {
	mu            sync.Mutex
	catalogStatus int
	catalog       string
	customers     map[string]sr22api.Customer
	gatewayStatus int
	gatewayBody   string
	sessions      []gateway.CheckoutSessionRequest
	lookups       []string
}

func newUpstream() *upstream {
	return &upstream{
		catalog:     `[{"id":1,"name":"Oil Change","amount":50000,"currency":"mxn"},{"id":"2","name":"Brake Check","amount":25000,"currency":"mxn"}]`,
		customers:   map[string]sr22api.Customer{},
		gatewayBody: `{"id":"cs_123","url":"https://pay.example/s/123"}`,
	}
}

func (u *upstream) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"tok"}`))
	})
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		status, body := u.catalogStatus, u.catalog
		u.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"Catálogo no disponible"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/customer/find-by-phone", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phone string `json:"phone"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		u.mu.Lock()
		u.lookups = append(u.lookups, req.Phone)
		customer, ok := u.customers[req.Phone]
		u.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(customer)
	})
	mux.HandleFunc("/create-checkout-session", func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CheckoutSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		u.mu.Lock()
		u.sessions = append(u.sessions, req)
		status, body := u.gatewayStatus, u.gatewayBody
		u.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
		}
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func (u *upstream) Sessions() []gateway.CheckoutSessionRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]gateway.CheckoutSessionRequest(nil), u.sessions...)
}

func (u *upstream) Lookups() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.lookups...)
}

type gaugeRecorder struct {
	mu   sync.Mutex
	last int
}

func (g *gaugeRecorder) SetActiveSessions(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func (g *gaugeRecorder) Last() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

type fixture struct {
	upstream *upstream
	store    *checkout.MemorySnapshotStore
	registry *Registry
	gauge    *gaugeRecorder
	checkout *CheckoutHandler
	live     *LiveHandler
}

func newFixture(t *testing.T, lock bool) *fixture {
	t.Helper()
	up := newUpstream()
	srv := httptest.NewServer(up.handler(t))
	t.Cleanup(srv.Close)

	logger := logging.Discard()
	api := sr22api.NewClient(sr22api.Options{
		AuthTokenURL:      srv.URL + "/auth/token",
		ProductsURL:       srv.URL + "/products",
		CustomerLookupURL: srv.URL + "/customer/find-by-phone",
		APIKey:            "secret-key",
		Signature:         "sig",
		Timeout:           2 * time.Second,
		Logger:            logger,
	})
	gw := gateway.NewClient(srv.URL, 2*time.Second, logger)

	f := &fixture{
		upstream: up,
		store:    checkout.NewMemorySnapshotStore(time.Minute),
		gauge:    &gaugeRecorder{},
	}
	f.registry = NewRegistry(RegistryOptions{
		Session: checkout.Options{
			Catalog:         api,
			Customers:       api,
			Gateway:         gw,
			PublicBaseURL:   "https://payments.sr22.fit",
			LockPreselected: lock,
			Locale:          "es-MX",
		},
		Store:  f.store,
		TTL:    time.Minute,
		Logger: logger,
		Gauge:  f.gauge,
	})
	t.Cleanup(f.registry.CloseAll)
	f.checkout = NewCheckoutHandler(f.registry, "https://payments.sr22.fit", logger)
	f.live = NewLiveHandler(f.registry, logger)
	return f
}

// mount performs GET /?query and returns the response and session cookie.
func (f *fixture) mount(t *testing.T, query string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.checkout.Mount(rec, httptest.NewRequest(http.MethodGet, "/?"+query, nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookie, cookies[0].Name)
	return rec, cookies[0]
}

func postForm(target string, cookie *http.Cookie, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}
