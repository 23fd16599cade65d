package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sr22fit/checkout-web/internal/apierror"
	"github.com/sr22fit/checkout-web/internal/gateway"
	"github.com/sr22fit/checkout-web/internal/sr22api"
)

// BuildCheckoutRequest assembles the gateway payload for one unit of svc.
// It depends only on its arguments, so resubmitting unchanged form state
// produces an identical payload.
func BuildCheckoutRequest(baseURL string, svc sr22api.Service, client ClientInfo) gateway.CheckoutSessionRequest {
	serviceID := svc.ID.String()
	return gateway.CheckoutSessionRequest{
		SuccessURL: ReturnURL(baseURL, StatusSuccess, client, serviceID),
		CancelURL:  ReturnURL(baseURL, StatusCancel, client, serviceID),
		LineItems: []gateway.LineItem{{
			PriceData: gateway.PriceData{
				Currency: strings.ToLower(strings.TrimSpace(svc.Currency)),
				ProductData: gateway.ProductData{
					Name: svc.Name,
					Metadata: gateway.Metadata{
						ServiceID:   serviceID,
						ClientName:  client.Name,
						ClientPhone: client.Phone,
						ExternalID:  client.ExternalID,
					},
				},
				UnitAmount: svc.Amount,
			},
			Quantity: 1,
		}},
	}
}

// CanSubmit reports whether the submit action is enabled.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() bool {
	if s.closed || !s.loaded || s.state != StateIdle {
		return false
	}
	if _, ok := s.selectedLocked(); !ok {
		return false
	}
	return ValidExternalID(s.client.ExternalID)
}

// Submit validates the form, creates a hosted checkout session and returns
// the URL the browser must be redirected to. Validation failures return
// before any network call. On failure the form returns to idle with an
// inline error and may be submitted again.
func (s *Session) Submit(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	switch s.state {
	case StateSubmitting:
		s.mu.Unlock()
		return "", ErrSubmitInProgress
	case StateRedirecting:
		redirect := s.redirectURL
		s.mu.Unlock()
		return redirect, nil
	}
	s.submitErr = ""
	s.statusMessage = ""
	svc, ok := s.selectedLocked()
	if !ok {
		s.submitErr = MsgNoService
		s.mu.Unlock()
		s.metrics.ObserveSubmit("invalid")
		return "", ErrNoServiceSelected
	}
	if !ValidExternalID(s.client.ExternalID) {
		s.submitErr = MsgInvalidExternalID
		s.mu.Unlock()
		s.metrics.ObserveSubmit("invalid")
		return "", ErrInvalidExternalID
	}
	req := BuildCheckoutRequest(s.baseURL, svc, s.client)
	s.state = StateSubmitting
	s.mu.Unlock()

	callCtx, cancel := s.bind(ctx)
	defer cancel()
	session, err := s.gateway.CreateCheckoutSession(callCtx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	if err != nil {
		s.state = StateIdle
		s.submitErr = submitMessage(err)
		s.logger.Error("checkout session creation failed", "error", err, "service_id", svc.ID.String())
		s.metrics.ObserveSubmit("error")
		return "", fmt.Errorf("checkout: create session: %w", err)
	}
	s.state = StateRedirecting
	s.redirectURL = session.URL
	s.logger.Info("redirecting to hosted checkout", "service_id", svc.ID.String(), "external_id", s.client.ExternalID)
	s.metrics.ObserveSubmit("redirect")
	return session.URL, nil
}

func submitMessage(err error) string {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apierror.Message(err, MsgCreateSessionFallback)
	}
	return apierror.Message(err, MsgSubmitFallback)
}
