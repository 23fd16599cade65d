package checkout

import (
	"context"
	"sync"

	"github.com/sr22fit/checkout-web/internal/gateway"
	"github.com/sr22fit/checkout-web/internal/sr22api"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

type fakeCatalog struct {
	mu       sync.Mutex
	services []sr22api.Service
	err      error
	calls    int
}

func (f *fakeCatalog) ListServices(ctx context.Context) ([]sr22api.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]sr22api.Service(nil), f.services...), nil
}

type lookupResponse struct {
	customer *sr22api.Customer
	err      error
	// release, when set, holds the answer until closed.
	release chan struct{}
	// waitCtx makes the call block until its context ends.
	waitCtx bool
}

type scriptedDirectory struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]lookupResponse
	ctxErrs   []error
}

func newScriptedDirectory() *scriptedDirectory {
	return &scriptedDirectory{responses: make(map[string]lookupResponse)}
}

func (d *scriptedDirectory) on(phone string, resp lookupResponse) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses[phone] = resp
}

func (d *scriptedDirectory) FindCustomerByPhone(ctx context.Context, phone string) (*sr22api.Customer, error) {
	d.mu.Lock()
	d.calls = append(d.calls, phone)
	resp, ok := d.responses[phone]
	d.mu.Unlock()
	if !ok {
		return nil, sr22api.ErrCustomerNotFound
	}
	if resp.waitCtx {
		<-ctx.Done()
		d.mu.Lock()
		d.ctxErrs = append(d.ctxErrs, ctx.Err())
		d.mu.Unlock()
		return nil, ctx.Err()
	}
	if resp.release != nil {
		<-resp.release
	}
	return resp.customer, resp.err
}

func (d *scriptedDirectory) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *scriptedDirectory) CtxErrs() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.ctxErrs...)
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.CheckoutSessionRequest
	session  *gateway.CheckoutSession
	err      error
	release  chan struct{}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutSessionRequest) (*gateway.CheckoutSession, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	release := g.release
	g.mu.Unlock()
	if release != nil {
		<-release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, g.err
}

func (g *fakeGateway) Requests() []gateway.CheckoutSessionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.CheckoutSessionRequest(nil), g.requests...)
}

type countingObserver struct {
	mu      sync.Mutex
	lookups map[string]int
	submits map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{lookups: map[string]int{}, submits: map[string]int{}}
}

func (o *countingObserver) ObserveLookup(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups[outcome]++
}

func (o *countingObserver) ObserveSubmit(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submits[outcome]++
}

func (o *countingObserver) lookup(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lookups[outcome]
}

func oilChange() sr22api.Service {
	return sr22api.Service{ID: "1", Name: "Oil Change", Amount: 50000, Currency: "mxn"}
}

type harness struct {
	catalog   *fakeCatalog
	directory *scriptedDirectory
	gateway   *fakeGateway
	observer  *countingObserver
	session   *Session
}

func newHarness(services []sr22api.Service, lock bool) *harness {
	h := &harness{
		catalog:   &fakeCatalog{services: services},
		directory: newScriptedDirectory(),
		gateway:   &fakeGateway{},
		observer:  newCountingObserver(),
	}
	h.session = NewSession(Options{
		Catalog:         h.catalog,
		Customers:       h.directory,
		Gateway:         h.gateway,
		PublicBaseURL:   "https://payments.sr22.fit",
		LockPreselected: lock,
		Locale:          "es-MX",
		Logger:          logging.Discard(),
		Metrics:         h.observer,
	})
	return h
}
