// Package checkout holds the state of one checkout form and runs its
// bootstrap, phone-lookup and submission flows against the SR22 services.
package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sr22fit/checkout-web/internal/apierror"
	"github.com/sr22fit/checkout-web/internal/gateway"
	"github.com/sr22fit/checkout-web/internal/sr22api"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// Catalog lists purchasable services.
type Catalog interface {
	ListServices(ctx context.Context) ([]sr22api.Service, error)
}

// CustomerDirectory resolves a customer record from a phone number.
type CustomerDirectory interface {
	FindCustomerByPhone(ctx context.Context, phone string) (*sr22api.Customer, error)
}

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req gateway.CheckoutSessionRequest) (*gateway.CheckoutSession, error)
}

// Observer records flow outcomes.
type Observer interface {
	ObserveLookup(outcome string)
	ObserveSubmit(outcome string)
}

type noopObserver struct{}

func (noopObserver) ObserveLookup(string) {}
func (noopObserver) ObserveSubmit(string) {}

// ClientInfo is the customer identity typed in or resolved by lookup.
type ClientInfo struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	ExternalID string `json:"external_id"`
}

// SubmitState is the submission state machine:
// idle -> submitting -> (redirecting | idle with error).
type SubmitState int

const (
	StateIdle SubmitState = iota
	StateSubmitting
	StateRedirecting
)

func (s SubmitState) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateRedirecting:
		return "redirecting"
	default:
		return "idle"
	}
}

// MarshalText renders the state name in JSON views.
func (s SubmitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *SubmitState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "submitting":
		*s = StateSubmitting
	case "redirecting":
		*s = StateRedirecting
	default:
		return fmt.Errorf("checkout: unknown submit state %q", text)
	}
	return nil
}

// Options wires a Session to its collaborators.
type Options struct {
	Catalog   Catalog
	Customers CustomerDirectory
	Gateway   Gateway
	// PublicBaseURL is where the hosted payment page returns the customer.
	PublicBaseURL string
	// LockPreselected locks a selection that came from the idprod parameter.
	LockPreselected bool
	Locale          string
	Logger          *logging.Logger
	Metrics         Observer
}

// Session is one mounted checkout form. It is safe for concurrent use; the
// mutex is never held across network calls.
type Session struct {
	catalog         Catalog
	customers       CustomerDirectory
	gateway         Gateway
	baseURL         string
	lockPreselected bool
	locale          string
	logger          *logging.Logger
	metrics         Observer

	// ctx is cancelled by Close and bounds every in-flight call.
	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	closed          bool
	loaded          bool
	loadErr         string
	statusMessage   string
	services        []sr22api.Service
	selectedID      string
	locked          bool
	client          ClientInfo
	foundCustomerID string
	searching       bool
	lookupGen       uint64
	lookupCancel    context.CancelFunc
	state           SubmitState
	submitErr       string
	redirectURL     string
}

// NewSession creates an unmounted session. Nothing is fetched until
// Bootstrap is called.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopObserver{}
	}
	if opts.Locale == "" {
		opts.Locale = defaultLocale
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		catalog:         opts.Catalog,
		customers:       opts.Customers,
		gateway:         opts.Gateway,
		baseURL:         strings.TrimSpace(opts.PublicBaseURL),
		lockPreselected: opts.LockPreselected,
		locale:          opts.Locale,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Bootstrap runs the mount sequence: status message, prefill, credential
// and catalog fetch (sequential, inside the catalog client), then service
// reconciliation. A catalog failure leaves the session in the blocking
// load-error state and is returned.
func (s *Session) Bootstrap(ctx context.Context, query url.Values) error {
	prefill := ParsePrefill(query)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.statusMessage = prefill.StatusMessage()
	if prefill.Name != "" {
		s.client.Name = prefill.Name
	}
	if prefill.Phone != "" {
		s.client.Phone = prefill.Phone
	}
	if prefill.ExternalID != "" {
		s.client.ExternalID = prefill.ExternalID
	}
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	defer cancel()
	services, err := s.catalog.ListServices(callCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err != nil {
		s.loaded = false
		s.loadErr = apierror.Message(err, MsgServicesFallback)
		s.logger.Error("checkout services failed to load", "error", err)
		return fmt.Errorf("checkout: load services: %w", err)
	}

	s.loaded = true
	s.loadErr = ""
	s.services = services
	s.selectedID = ""
	s.locked = false
	if prefill.ProductID != "" {
		if _, ok := s.findLocked(prefill.ProductID); ok {
			s.selectedID = prefill.ProductID
			s.locked = s.lockPreselected
		} else {
			s.logger.Info("preselected service not in catalog", "idprod", prefill.ProductID)
		}
	}
	if s.selectedID == "" && len(services) > 0 {
		s.selectedID = services[0].ID.String()
	}
	s.logger.Info("checkout mounted", "services", len(services), "selected", s.selectedID, "locked", s.locked)
	return nil
}

// SelectService changes the selected service.
func (s *Session) SelectService(id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	if s.locked && id != s.selectedID {
		return ErrServiceLocked
	}
	if _, ok := s.findLocked(id); !ok {
		return ErrUnknownService
	}
	s.selectedID = id
	return nil
}

// SetName updates the typed name. A name resolved by lookup cannot be
// overridden.
func (s *Session) SetName(name string) error {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.foundCustomerID != "" {
		if name == s.client.Name {
			return nil
		}
		return ErrNameLocked
	}
	s.client.Name = name
	return nil
}

// Close unmounts the session: in-flight calls are cancelled and no later
// result mutates state. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.searching = false
	if s.lookupCancel != nil {
		s.lookupCancel()
		s.lookupCancel = nil
	}
	s.cancel()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// bind derives a context that ends when ctx ends or the session closes.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) findLocked(id string) (sr22api.Service, bool) {
	for _, svc := range s.services {
		if svc.ID.String() == id {
			return svc, true
		}
	}
	return sr22api.Service{}, false
}

func (s *Session) selectedLocked() (sr22api.Service, bool) {
	if s.selectedID == "" {
		return sr22api.Service{}, false
	}
	return s.findLocked(s.selectedID)
}
