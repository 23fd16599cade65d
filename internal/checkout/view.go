package checkout

// ServiceOption is one catalog entry as rendered in the form.
type ServiceOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Price    string `json:"price"`
	Selected bool   `json:"selected"`
}

// View is a consistent copy of the form state for rendering.
type View struct {
	Loaded          bool            `json:"loaded"`
	LoadError       string          `json:"load_error,omitempty"`
	StatusMessage   string          `json:"status_message,omitempty"`
	Services        []ServiceOption `json:"services"`
	SelectedID      string          `json:"selected_id,omitempty"`
	Total           string          `json:"total,omitempty"`
	ServiceLocked   bool            `json:"service_locked"`
	Client          ClientInfo      `json:"client"`
	FoundCustomerID string          `json:"found_customer_id,omitempty"`
	NameReadOnly    bool            `json:"name_read_only"`
	Searching       bool            `json:"searching"`
	State           SubmitState     `json:"state"`
	SubmitError     string          `json:"submit_error,omitempty"`
	RedirectURL     string          `json:"redirect_url,omitempty"`
	CanSubmit       bool            `json:"can_submit"`
}

// View returns the current form state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Loaded:          s.loaded,
		LoadError:       s.loadErr,
		StatusMessage:   s.statusMessage,
		SelectedID:      s.selectedID,
		ServiceLocked:   s.locked,
		Client:          s.client,
		FoundCustomerID: s.foundCustomerID,
		NameReadOnly:    s.foundCustomerID != "",
		Searching:       s.searching,
		State:           s.state,
		SubmitError:     s.submitErr,
		RedirectURL:     s.redirectURL,
		CanSubmit:       s.canSubmitLocked(),
	}
	v.Services = make([]ServiceOption, 0, len(s.services))
	for _, svc := range s.services {
		opt := ServiceOption{
			ID:       svc.ID.String(),
			Name:     svc.Name,
			Amount:   svc.Amount,
			Currency: svc.Currency,
			Price:    FormatAmount(svc.Amount, svc.Currency, s.locale),
			Selected: svc.ID.String() == s.selectedID,
		}
		if opt.Selected {
			v.Total = opt.Price
		}
		v.Services = append(v.Services, opt)
	}
	return v
}

// Snapshot is the part of a session kept across process restarts. It never
// holds credentials.
type Snapshot struct {
	Client          ClientInfo `json:"client"`
	FoundCustomerID string     `json:"found_customer_id,omitempty"`
	SelectedID      string     `json:"selected_id,omitempty"`
	Locked          bool       `json:"locked,omitempty"`
}

// Snapshot captures the restorable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Client:          s.client,
		FoundCustomerID: s.foundCustomerID,
		SelectedID:      s.selectedID,
		Locked:          s.locked,
	}
}

// Restore re-applies a snapshot after Bootstrap. A selection no longer in
// the catalog is ignored.
func (s *Session) Restore(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.client = snap.Client
	s.foundCustomerID = snap.FoundCustomerID
	if snap.SelectedID != "" && s.loaded {
		if _, ok := s.findLocked(snap.SelectedID); ok {
			s.selectedID = snap.SelectedID
			s.locked = snap.Locked && s.lockPreselected
		}
	}
	return nil
}
