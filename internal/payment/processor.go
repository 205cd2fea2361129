package payment

import "context"

// InvoiceItem is one line charged against a customer.
type InvoiceItem struct {
	CustomerID  string
	AmountCents int64
	Currency    string
	Description string
}

// InvoiceRequest finalizes the pending items for a customer into an
// invoice for a billing period.
type InvoiceRequest struct {
	CustomerID  string
	Currency    string
	Description string
	Metadata    map[string]string
}

// TransferRequest moves funds to a connected account.
type TransferRequest struct {
	DestinationAccountID string
	AmountCents          int64
	Currency             string
	Description          string
}

// Processor is the payment backend the billing engine settles through.
type Processor interface {
	CreateInvoiceItem(ctx context.Context, item InvoiceItem) error
	CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (string, error)
}
