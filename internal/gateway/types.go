package gateway

// CheckoutSessionRequest is the body posted to create-checkout-session.
type CheckoutSessionRequest struct {
	SuccessURL string     `json:"successUrl"`
	CancelURL  string     `json:"cancelUrl"`
	LineItems  []LineItem `json:"lineItems"`
}

// LineItem is one purchased unit.
type LineItem struct {
	PriceData PriceData `json:"price_data"`
	Quantity  int       `json:"quantity"`
}

// PriceData carries an ad-hoc price. UnitAmount is in minor currency units.
type PriceData struct {
	Currency    string      `json:"currency"`
	ProductData ProductData `json:"product_data"`
	UnitAmount  int64       `json:"unit_amount"`
}

// ProductData names the product and carries the correlation metadata.
type ProductData struct {
	Name     string   `json:"name"`
	Metadata Metadata `json:"metadata"`
}

// Metadata correlates the payment with the service and customer record.
type Metadata struct {
	ServiceID   string `json:"service_id"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	ExternalID  string `json:"external_id"`
}

// CheckoutSession is the gateway's answer.
type CheckoutSession struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}
