package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sanarberkebayram/monetizeit/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoiceItem(t *testing.T) {
	var gotPath, gotAuth string
	var gotForm map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`{"id":"ii_123"}`))
	}))
	defer server.Close()

	adapter := NewWithBaseURL("sk_test_key", server.URL)
	err := adapter.CreateInvoiceItem(context.Background(), payment.InvoiceItem{
		CustomerID:  "cus_1",
		AmountCents: 600,
		Currency:    "usd",
		Description: "pro usage 2026-08",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/invoiceitems", gotPath)
	assert.Equal(t, "Bearer sk_test_key", gotAuth)
	assert.Equal(t, []string{"cus_1"}, gotForm["customer"])
	assert.Equal(t, []string{"600"}, gotForm["amount"])
	assert.Equal(t, []string{"usd"}, gotForm["currency"])
}

func TestCreateInvoice(t *testing.T) {
	var gotForm map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		assert.Equal(t, "/v1/invoices", r.URL.Path)
		w.Write([]byte(`{"id":"in_456"}`))
	}))
	defer server.Close()

	adapter := NewWithBaseURL("sk_test_key", server.URL)
	id, err := adapter.CreateInvoice(context.Background(), payment.InvoiceRequest{
		CustomerID: "cus_1",
		Currency:   "usd",
		Metadata:   map[string]string{"subscription_id": "100"},
	})
	require.NoError(t, err)

	assert.Equal(t, "in_456", id)
	assert.Equal(t, []string{"cus_1"}, gotForm["customer"])
	assert.Equal(t, []string{"true"}, gotForm["auto_advance"])
	assert.Equal(t, []string{"100"}, gotForm["metadata[subscription_id]"])
}

func TestCreateTransfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		assert.Equal(t, "acct_1", r.PostForm.Get("destination"))
		w.Write([]byte(`{"id":"tr_789"}`))
	}))
	defer server.Close()

	adapter := NewWithBaseURL("sk_test_key", server.URL)
	id, err := adapter.CreateTransfer(context.Background(), payment.TransferRequest{
		DestinationAccountID: "acct_1",
		AmountCents:          500,
		Currency:             "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_789", id)
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer server.Close()

	adapter := NewWithBaseURL("sk_test_key", server.URL)
	_, err := adapter.CreateInvoice(context.Background(), payment.InvoiceRequest{CustomerID: "cus_1", Currency: "usd"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
	assert.Contains(t, err.Error(), "card declined")
}
