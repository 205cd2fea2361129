package billing

import (
	"time"

	"gorm.io/datatypes"
)

// Plan unit types.
const (
	UnitTypeSubscription = "subscription"
	UnitTypeRequest      = "request"
	UnitTypeMB           = "MB"
)

// Invoice statuses.
const (
	InvoiceStatusDraft  = "draft"
	InvoiceStatusOpen   = "open"
	InvoiceStatusPaid   = "paid"
	InvoiceStatusFailed = "failed"
	InvoiceStatusVoid   = "void"
)

// Client is a billable account with its payment processor handles.
type Client struct {
	ID                  string    `gorm:"primaryKey" json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	ProcessorCustomerID string    `json:"processor_customer_id"`
	ProcessorAccountID  string    `json:"processor_account_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Plan holds the pricing terms applied to a subscription.
type Plan struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	Name             string    `json:"name"`
	UnitType         string    `json:"unit_type"`
	PriceCents       int64     `json:"price_cents"`
	UnitPriceCents   float64   `json:"unit_price_cents"`
	QuotaLimit       int64     `json:"quota_limit"`
	RateLimit        int64     `json:"rate_limit"`
	ProcessorPriceID string    `json:"processor_price_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Subscription binds a client to an API under a plan.
type Subscription struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ClientID  string    `gorm:"column:client_id;index:idx_subscriptions_client" json:"client_id"`
	APIID     string    `gorm:"column:api_id;index:idx_subscriptions_api" json:"api_id"`
	PlanID    int64     `json:"plan_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Invoice is one billing period settled for a subscription. The unique
// (subscription_id, period_start) index makes runs idempotent.
type Invoice struct {
	ID                 int64             `gorm:"primaryKey" json:"id"`
	SubscriptionID     int64             `gorm:"uniqueIndex:ux_invoices_period" json:"subscription_id"`
	PeriodStart        time.Time         `gorm:"uniqueIndex:ux_invoices_period" json:"period_start"`
	PeriodEnd          time.Time         `json:"period_end"`
	AmountCents        int64             `json:"amount_cents"`
	Currency           string            `json:"currency"`
	Status             string            `json:"status"`
	ProcessorInvoiceID string            `json:"processor_invoice_id"`
	Metadata           datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}
