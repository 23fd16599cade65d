package sr22api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ID is an upstream identifier. The services send ids as JSON numbers or
// strings; both decode to the same string form so selection and lookups can
// compare with plain string equality.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("sr22api: id must be a string or number: %s", data)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	// 1.0 and 1e0 are the integer 1, as a browser would print them.
	if d, err := decimal.NewFromString(n.String()); err == nil {
		*id = ID(d.String())
		return nil
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Service is a purchasable catalog entry. Amount is in minor currency units.
type Service struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Customer is the find-by-phone result.
type Customer struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type tokenRequest struct {
	APIKey string `json:"apiKey"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type customerLookupRequest struct {
	Phone string `json:"phone"`
}

// catalogResponse accepts both a bare array and the wrapped shapes some
// deployments return.
type catalogResponse struct {
	Services []Service
}

func (c *catalogResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &c.Services)
	}
	var wrapped struct {
		Products []Service `json:"products"`
		Services []Service `json:"services"`
		Data     []Service `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	switch {
	case len(wrapped.Products) > 0:
		c.Services = wrapped.Products
	case len(wrapped.Services) > 0:
		c.Services = wrapped.Services
	default:
		c.Services = wrapped.Data
	}
	return nil
}
