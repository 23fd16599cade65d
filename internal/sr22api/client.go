// Package sr22api talks to the SR22 auth, product catalog and customer
// services. Every privileged call acquires its own bearer token.
package sr22api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sr22fit/checkout-web/internal/apierror"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

const (
	defaultTimeout = 10 * time.Second

	// SignatureHeader identifies this form to the SR22 services.
	SignatureHeader = "x-sr22-signature"

	endpointAuth     = "auth"
	endpointProducts = "products"
	endpointCustomer = "customer_lookup"
)

var tracer = otel.Tracer("sr22.internal.sr22api")

var (
	// ErrEmptyToken is returned when the auth service answers without a token.
	ErrEmptyToken = errors.New("sr22api: auth response missing token")
	// ErrCustomerNotFound means the lookup completed without a customer id.
	ErrCustomerNotFound = errors.New("sr22api: customer not found")
)

// Observer records upstream call outcomes.
type Observer interface {
	ObserveUpstream(endpoint, status string, seconds float64)
}

type noopObserver struct{}

func (noopObserver) ObserveUpstream(string, string, float64) {}

// Options configures a Client.
type Options struct {
	AuthTokenURL      string
	ProductsURL       string
	CustomerLookupURL string
	APIKey            string
	Signature         string
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *logging.Logger
	Metrics           Observer
}

// Client is safe for concurrent use.
type Client struct {
	authURL     string
	productsURL string
	customerURL string
	apiKey      string
	signature   string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *logging.Logger
	metrics     Observer
}

// NewClient builds a client from opts.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopObserver{}
	}
	return &Client{
		authURL:     strings.TrimSpace(opts.AuthTokenURL),
		productsURL: strings.TrimSpace(opts.ProductsURL),
		customerURL: strings.TrimSpace(opts.CustomerLookupURL),
		apiKey:      opts.APIKey,
		signature:   opts.Signature,
		timeout:     opts.Timeout,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Token exchanges the shared API key for a short-lived bearer token.
func (c *Client) Token(ctx context.Context) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, endpointAuth, http.MethodPost, c.authURL, "", tokenRequest{APIKey: c.apiKey}, &out); err != nil {
		return "", fmt.Errorf("sr22api: token: %w", err)
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// ListServices fetches the product catalog. No catalog request is made when
// the token cannot be obtained.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	var out catalogResponse
	if err := c.do(ctx, endpointProducts, http.MethodGet, c.productsURL, token, nil, &out); err != nil {
		return nil, fmt.Errorf("sr22api: products: %w", err)
	}
	services := make([]Service, 0, len(out.Services))
	for _, s := range out.Services {
		if s.ID == "" {
			c.logger.Warn("catalog entry without id skipped", "name", s.Name)
			continue
		}
		services = append(services, s)
	}
	c.logger.Debug("catalog loaded", "count", len(services))
	return services, nil
}

// FindCustomerByPhone looks up a customer record by phone number. A 404 or a
// response without an id yields ErrCustomerNotFound.
func (c *Client) FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	var out Customer
	err = c.do(ctx, endpointCustomer, http.MethodPost, c.customerURL, token, customerLookupRequest{Phone: phone}, &out)
	if err != nil {
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("sr22api: customer lookup: %w", err)
	}
	if out.ID == "" {
		return nil, ErrCustomerNotFound
	}
	out.Name = strings.TrimSpace(out.Name)
	return &out, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, rawURL, token string, body, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "sr22api."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.Bool("sr22.authenticated", token != ""),
	)

	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.ObserveUpstream(endpoint, status, time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		if c.signature != "" {
			req.Header.Set(SignatureHeader, c.signature)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status = strconv.Itoa(resp.StatusCode)
		apiErr := apierror.FromResponse(endpoint, resp)
		c.logger.Warn("sr22 API non-2xx response", "endpoint", endpoint, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	status = "ok"
	return nil
}
