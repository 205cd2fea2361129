package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sanarberkebayram/monetizeit/internal/payment"
)

const defaultBaseURL = "https://api.stripe.com"

// Adapter settles invoices through the Stripe REST API using form-encoded
// requests, no SDK.
type Adapter struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey string) *Adapter {
	return NewWithBaseURL(apiKey, defaultBaseURL)
}

func NewWithBaseURL(apiKey, baseURL string) *Adapter {
	return &Adapter{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *Adapter) CreateInvoiceItem(ctx context.Context, item payment.InvoiceItem) error {
	form := url.Values{}
	form.Set("customer", item.CustomerID)
	form.Set("amount", strconv.FormatInt(item.AmountCents, 10))
	form.Set("currency", item.Currency)
	if item.Description != "" {
		form.Set("description", item.Description)
	}

	_, err := a.post(ctx, "/v1/invoiceitems", form)
	return err
}

func (a *Adapter) CreateInvoice(ctx context.Context, req payment.InvoiceRequest) (string, error) {
	form := url.Values{}
	form.Set("customer", req.CustomerID)
	form.Set("currency", req.Currency)
	form.Set("auto_advance", "true")
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	for key, value := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	body, err := a.post(ctx, "/v1/invoices", form)
	if err != nil {
		return "", err
	}
	return body.ID, nil
}

func (a *Adapter) CreateTransfer(ctx context.Context, req payment.TransferRequest) (string, error) {
	form := url.Values{}
	form.Set("destination", req.DestinationAccountID)
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", req.Currency)
	if req.Description != "" {
		form.Set("description", req.Description)
	}

	body, err := a.post(ctx, "/v1/transfers", form)
	if err != nil {
		return "", err
	}
	return body.ID, nil
}

type stripeObject struct {
	ID string `json:"id"`
}

func (a *Adapter) post(ctx context.Context, path string, form url.Values) (*stripeObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("stripe %s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var body stripeObject
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &body, nil
}
