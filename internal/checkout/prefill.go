package checkout

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Query parameters read on mount and written into the return URLs.
const (
	ParamStatus    = "status"
	ParamName      = "name"
	ParamPhone     = "phone"
	ParamEmail     = "email"
	ParamID        = "id"
	ParamProductID = "idprod"

	StatusSuccess = "success"
	StatusCancel  = "cancel"
)

// Prefill is what the page URL asks the form to start with.
type Prefill struct {
	Status     string
	Name       string
	Phone      string
	ExternalID string
	ProductID  string
}

// ParsePrefill reads the mount query. phone falls back to email for links
// generated by the older email-based form.
func ParsePrefill(q url.Values) Prefill {
	phone := strings.TrimSpace(q.Get(ParamPhone))
	if phone == "" {
		phone = strings.TrimSpace(q.Get(ParamEmail))
	}
	return Prefill{
		Status:     strings.ToLower(strings.TrimSpace(q.Get(ParamStatus))),
		Name:       strings.TrimSpace(q.Get(ParamName)),
		Phone:      phone,
		ExternalID: strings.TrimSpace(q.Get(ParamID)),
		ProductID:  strings.TrimSpace(q.Get(ParamProductID)),
	}
}

// StatusMessage maps the payment status flag to an informational message.
func (p Prefill) StatusMessage() string {
	switch p.Status {
	case StatusSuccess:
		return MsgStatusSuccess
	case StatusCancel:
		return MsgStatusCancel
	default:
		return ""
	}
}

// ReturnURL builds the URL the hosted payment page sends the customer back
// to, carrying the form state so it can be prefilled again.
func ReturnURL(baseURL, status string, client ClientInfo, serviceID string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		u = &url.URL{Path: baseURL}
	}
	q := u.Query()
	q.Set(ParamStatus, status)
	setIf(q, ParamName, client.Name)
	setIf(q, ParamPhone, client.Phone)
	setIf(q, ParamID, client.ExternalID)
	setIf(q, ParamProductID, serviceID)
	u.RawQuery = q.Encode()
	return u.String()
}

func setIf(q url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		q.Set(key, value)
	}
}

// ValidExternalID reports whether id is a positive, finite number.
func ValidExternalID(id string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(id), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f > 0
}

// PhoneDigits strips everything but ASCII digits.
func PhoneDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone renders ten digits with the form's (XXX) XXX-XXXX mask. Other
// lengths are returned unchanged.
func FormatPhone(digits string) string {
	if len(digits) != 10 {
		return digits
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
}
