package domain

import "errors"

var (
	ErrInvalidKey  = errors.New("invalid_api_key")
	ErrInactiveKey = errors.New("inactive_api_key")
)

// Credential is a validated API key bound to an API and a client.
type Credential struct {
	APIID    string        `json:"api_id"`
	ClientID string        `json:"client_id"`
	Status   string        `json:"status"`
	Plan     *PlanSnapshot `json:"plan,omitempty"`
}

// PlanSnapshot is the plan attached to the credential when it was
// validated. Admission decisions use these numbers directly.
type PlanSnapshot struct {
	Name           string  `json:"name"`
	UnitType       string  `json:"unit_type"`
	UnitPriceCents float64 `json:"unit_price_cents"`
	PriceCents     int64   `json:"price_cents"`
	QuotaLimit     int64   `json:"quota_limit"`
	RateLimit      int64   `json:"rate_limit"`
}

func (c *Credential) Active() bool {
	return c != nil && c.Status == "active"
}
