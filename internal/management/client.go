package management

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrKeyNotFound = errors.New("api_key_not_found")
	ErrUnavailable = errors.New("management_api_unavailable")
)

// Credential is the management API's view of an API key.
type Credential struct {
	APIID    string        `json:"api_id"`
	ClientID string        `json:"client_id"`
	Status   string        `json:"status"`
	Plan     *PlanSnapshot `json:"plan,omitempty"`
}

// PlanSnapshot carries the plan terms attached to a credential at
// validation time.
type PlanSnapshot struct {
	Name           string  `json:"name"`
	UnitType       string  `json:"unit_type"`
	UnitPriceCents float64 `json:"unit_price_cents"`
	PriceCents     int64   `json:"price_cents"`
	QuotaLimit     int64   `json:"quota_limit"`
	RateLimit      int64   `json:"rate_limit"`
}

// UsageDay is one day of recorded usage for an API.
type UsageDay struct {
	Date          string `json:"date"`
	TotalRequests int64  `json:"total_requests"`
	TotalBytes    int64  `json:"total_bytes"`
}

// Client talks to the management API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// ValidateKey resolves a raw API key to its credential. Unknown and
// rejected keys map to ErrKeyNotFound; transport and server failures map
// to ErrUnavailable.
func (c *Client) ValidateKey(ctx context.Context, rawKey string) (*Credential, error) {
	endpoint := fmt.Sprintf("%s/validate/validate-api-key/%s", c.baseURL, url.PathEscape(rawKey))

	var cred Credential
	if err := c.getJSON(ctx, endpoint, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Usage returns the per-day usage recorded for an API over [startDate, endDate],
// optionally narrowed to one client.
func (c *Client) Usage(ctx context.Context, apiID, clientID, startDate, endDate string) ([]UsageDay, error) {
	query := url.Values{}
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)
	if clientID != "" {
		query.Set("client_id", clientID)
	}
	endpoint := fmt.Sprintf("%s/apis/%s/usage?%s", c.baseURL, url.PathEscape(apiID), query.Encode())

	var days []UsageDay
	if err := c.getJSON(ctx, endpoint, &days); err != nil {
		return nil, err
	}
	return days, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusNotFound:
		// The management API rejects unknown and inactive keys with 401.
		return ErrKeyNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Join(ErrUnavailable, fmt.Errorf("management api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
