package checkout

import (
	"context"
	"errors"

	"github.com/sr22fit/checkout-web/internal/sr22api"
)

// LookupOutcome reports what a phone change did.
type LookupOutcome string

const (
	// LookupSkipped: the phone is not ten digits; derived fields were cleared.
	LookupSkipped LookupOutcome = "skipped"
	// LookupFound: the customer was resolved and the fields were filled.
	LookupFound LookupOutcome = "found"
	// LookupNotFound: no match or a failed call; derived fields were cleared.
	LookupNotFound LookupOutcome = "not_found"
	// LookupStale: a newer change or Close superseded this lookup; its
	// result was discarded.
	LookupStale LookupOutcome = "stale"
)

// PhoneChange is an applied phone edit whose lookup may still be pending.
type PhoneChange struct {
	gen     uint64
	digits  string
	ctx     context.Context
	cancel  context.CancelFunc
	outcome LookupOutcome
}

// Pending reports whether Settle still has a lookup to run.
func (c *PhoneChange) Pending() bool { return c.outcome == "" }

// ChangePhone applies a phone field edit and blocks until its lookup, if
// any, settles.
func (s *Session) ChangePhone(ctx context.Context, raw string) LookupOutcome {
	return s.Settle(s.BeginPhoneChange(ctx, raw))
}

// BeginPhoneChange applies a phone field edit without waiting on the
// network. The raw value is stored, the derived fields (name, external id,
// found customer) are invalidated and the edit becomes the newest one: any
// older lookup in flight is cancelled and its response never reaches the
// form. Callers must begin edits in the order they were made. When the
// value has exactly ten digits the returned change is pending and Settle
// runs its lookup.
func (s *Session) BeginPhoneChange(ctx context.Context, raw string) *PhoneChange {
	digits := PhoneDigits(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &PhoneChange{outcome: LookupStale}
	}
	s.client.Phone = raw
	s.clearCustomerLocked()
	s.lookupGen++
	if s.lookupCancel != nil {
		s.lookupCancel()
		s.lookupCancel = nil
	}
	if len(digits) != 10 {
		s.searching = false
		s.metrics.ObserveLookup(string(LookupSkipped))
		return &PhoneChange{gen: s.lookupGen, outcome: LookupSkipped}
	}
	lookupCtx, cancel := s.bind(ctx)
	s.lookupCancel = cancel
	s.searching = true
	return &PhoneChange{gen: s.lookupGen, digits: digits, ctx: lookupCtx, cancel: cancel}
}

// Settle runs the lookup of a pending change and applies its result unless
// a newer edit or Close superseded it.
func (s *Session) Settle(change *PhoneChange) LookupOutcome {
	if !change.Pending() {
		return change.outcome
	}
	defer change.cancel()

	customer, err := s.customers.FindCustomerByPhone(change.ctx, FormatPhone(change.digits))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || change.gen != s.lookupGen {
		s.metrics.ObserveLookup(string(LookupStale))
		return LookupStale
	}
	s.searching = false
	s.lookupCancel = nil
	if err != nil || customer == nil || customer.ID == "" {
		s.clearCustomerLocked()
		if err != nil && !errors.Is(err, sr22api.ErrCustomerNotFound) {
			s.logger.Warn("phone lookup failed", "error", err)
		}
		s.metrics.ObserveLookup(string(LookupNotFound))
		return LookupNotFound
	}

	id := customer.ID.String()
	s.client.ExternalID = id
	s.foundCustomerID = id
	if customer.Name != "" {
		s.client.Name = customer.Name
	}
	s.metrics.ObserveLookup(string(LookupFound))
	return LookupFound
}

func (s *Session) clearCustomerLocked() {
	s.client.Name = ""
	s.client.ExternalID = ""
	s.foundCustomerID = ""
}

// Searching reports whether a lookup is in flight.
func (s *Session) Searching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searching
}

// lookupGeneration exposes the guard counter to tests.
func (s *Session) lookupGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupGen
}

