// Package gateway creates hosted checkout sessions through the payments
// backend and returns the URL the browser must be sent to.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	sessionPath    = "/create-checkout-session"
	endpointName   = "gateway"
)

// Messages shown to the customer when the gateway answers with an unusable shape.
const (
	MsgMissingCheckoutURL = "La respuesta no incluyó la URL de Checkout."
	MsgUnexpectedResponse = "Respuesta inesperada del servidor."
)

var gatewayTracer = otel.Tracer("sr22.internal.gateway")

var (
	// ErrMissingCheckoutURL means the gateway returned a session id but no URL.
	ErrMissingCheckoutURL = errors.New("gateway: response missing checkout url")
	// ErrUnexpectedResponse means the response had neither url nor id.
	ErrUnexpectedResponse = errors.New("gateway: unexpected response")
)

// Observer records upstream call outcomes.
type Observer interface {
	ObserveUpstream(endpoint, status string, seconds float64)
}

// Client posts checkout sessions to the payments backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *logging.Logger
	metrics    Observer
}

// NewClient creates a gateway client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

// WithMetrics attaches an upstream call observer.
func (c *Client) WithMetrics(m Observer) *Client {
	c.metrics = m
	return c
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// CreateCheckoutSession posts req and returns the session. A successful
// return always carries a non-empty URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (_ *CheckoutSession, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := gatewayTracer.Start(ctx, "gateway.create_checkout_session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("sr22.line_items", len(req.LineItems)))

	start := time.Now()
	status := "error"
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveUpstream(endpointName, status, time.Since(start).Seconds())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gateway: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: http: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status = strconv.Itoa(resp.StatusCode)
		apiErr := apierror.FromResponse(endpointName, resp)
		c.logger.Warn("gateway non-2xx response", "status", resp.StatusCode, "message", apiErr.Message)
		return nil, fmt.Errorf("gateway: create session: %w", apiErr)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, &apierror.UserError{Message: MsgUnexpectedResponse, Err: fmt.Errorf("gateway: decode: %w", err)}
	}
	session.URL = strings.TrimSpace(session.URL)
	switch {
	case session.URL != "":
		status = "ok"
		return &session, nil
	case session.ID != "":
		return nil, &apierror.UserError{Message: MsgMissingCheckoutURL, Err: ErrMissingCheckoutURL}
	default:
		return nil, &apierror.UserError{Message: MsgUnexpectedResponse, Err: ErrUnexpectedResponse}
	}
}
