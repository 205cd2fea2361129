package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"github.com/sanarberkebayram/monetizeit/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeUsage struct {
	requests int64
	bytes    int64
	err      error
}

func (f *fakeUsage) SumRange(_ context.Context, _, _ string, _, _ time.Time) (int64, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.requests, f.bytes, nil
}

type fakeProcessor struct {
	items      []payment.InvoiceItem
	invoices   []payment.InvoiceRequest
	invoiceErr error
	itemErr    error
}

func (f *fakeProcessor) CreateInvoiceItem(_ context.Context, item payment.InvoiceItem) error {
	if f.itemErr != nil {
		return f.itemErr
	}
	f.items = append(f.items, item)
	return nil
}

func (f *fakeProcessor) CreateInvoice(_ context.Context, req payment.InvoiceRequest) (string, error) {
	if f.invoiceErr != nil {
		return "", f.invoiceErr
	}
	f.invoices = append(f.invoices, req)
	return fmt.Sprintf("in_%d", len(f.invoices)), nil
}

func (f *fakeProcessor) CreateTransfer(_ context.Context, _ payment.TransferRequest) (string, error) {
	return "tr_1", nil
}

type engineFixture struct {
	db        *gorm.DB
	engine    *Engine
	usage     *fakeUsage
	processor *fakeProcessor
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Client{}, &Plan{}, &Subscription{}, &Invoice{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	usage := &fakeUsage{}
	processor := &fakeProcessor{}
	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	clk := clock.NewFakeClock(time.Date(2026, time.September, 3, 9, 0, 0, 0, time.UTC))

	engine := NewEngine(db, usage, processor, holder, node, clk, zap.NewNop(), nil)
	return &engineFixture{db: db, engine: engine, usage: usage, processor: processor}
}

func (f *engineFixture) seed(t *testing.T, unitType string, priceCents int64, unitPriceCents float64) Subscription {
	t.Helper()

	client := Client{ID: "client-1", Name: "Acme", ProcessorCustomerID: "cus_1"}
	require.NoError(t, f.db.Create(&client).Error)

	plan := Plan{ID: 10, Name: "pro", UnitType: unitType, PriceCents: priceCents, UnitPriceCents: unitPriceCents}
	require.NoError(t, f.db.Create(&plan).Error)

	sub := Subscription{ID: 100, ClientID: client.ID, APIID: "api-1", PlanID: plan.ID, Status: "active"}
	require.NoError(t, f.db.Create(&sub).Error)
	return sub
}

func (f *engineFixture) invoices(t *testing.T) []Invoice {
	t.Helper()
	var invoices []Invoice
	require.NoError(t, f.db.Find(&invoices).Error)
	return invoices
}

func TestRunOncePerRequestPlan(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, UnitTypeRequest, 0, 5)
	f.usage.requests = 120

	require.NoError(t, f.engine.RunOnce(context.Background()))

	invoices := f.invoices(t)
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(600), invoices[0].AmountCents)
	assert.Equal(t, InvoiceStatusDraft, invoices[0].Status)
	assert.Equal(t, "in_1", invoices[0].ProcessorInvoiceID)
	assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), invoices[0].PeriodStart.UTC())
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), invoices[0].PeriodEnd.UTC())

	require.Len(t, f.processor.items, 1)
	assert.Equal(t, "cus_1", f.processor.items[0].CustomerID)
	assert.Equal(t, int64(600), f.processor.items[0].AmountCents)
}

func TestRunOncePerMBPlan(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, UnitTypeMB, 0, 2)
	f.usage.bytes = 3 << 20

	require.NoError(t, f.engine.RunOnce(context.Background()))

	invoices := f.invoices(t)
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(6), invoices[0].AmountCents)
}

func TestRunOnceFlatPlanIgnoresUsage(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, UnitTypeSubscription, 2500, 0)
	f.usage.requests = 999999

	require.NoError(t, f.engine.RunOnce(context.Background()))

	invoices := f.invoices(t)
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(2500), invoices[0].AmountCents)

	// Flat plans are invoiced without a usage line item.
	assert.Empty(t, f.processor.items)
	assert.Len(t, f.processor.invoices, 1)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, UnitTypeRequest, 0, 5)
	f.usage.requests = 120

	require.NoError(t, f.engine.RunOnce(context.Background()))
	require.NoError(t, f.engine.RunOnce(context.Background()))

	assert.Len(t, f.invoices(t), 1)
	assert.Len(t, f.processor.invoices, 1)
}

func TestRunOnceSkipsZeroAmount(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, UnitTypeRequest, 0, 5)
	f.usage.requests = 0

	require.NoError(t, f.engine.RunOnce(context.Background()))

	assert.Empty(t, f.invoices(t))
	assert.Empty(t, f.processor.invoices)
}

func TestRunOnceProcessorFailureLeavesNoRow(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, UnitTypeRequest, 0, 5)
	f.usage.requests = 120
	f.processor.invoiceErr = errors.New("stripe unavailable")

	err := f.engine.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.invoices(t))

	// The next run retries the period once the processor recovers.
	f.processor.invoiceErr = nil
	require.NoError(t, f.engine.RunOnce(context.Background()))
	assert.Len(t, f.invoices(t), 1)
}

func TestRunOnceSkipsInactiveSubscriptions(t *testing.T) {
	f := newEngineFixture(t)
	sub := f.seed(t, UnitTypeRequest, 0, 5)
	require.NoError(t, f.db.Model(&Subscription{}).Where("id = ?", sub.ID).Update("status", "cancelled").Error)
	f.usage.requests = 120

	require.NoError(t, f.engine.RunOnce(context.Background()))
	assert.Empty(t, f.invoices(t))
}

func TestRunOnceContinuesPastBadSubscription(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, UnitTypeRequest, 0, 5)
	f.usage.requests = 120

	// Second subscription points at a missing plan.
	orphan := Subscription{ID: 101, ClientID: "client-1", APIID: "api-2", PlanID: 999, Status: "active"}
	require.NoError(t, f.db.Create(&orphan).Error)

	err := f.engine.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, f.invoices(t), 1)
}

func TestAmountCents(t *testing.T) {
	tests := []struct {
		name     string
		plan     Plan
		requests int64
		bytes    int64
		want     int64
	}{
		{"flat", Plan{UnitType: UnitTypeSubscription, PriceCents: 2500}, 9999, 0, 2500},
		{"per request", Plan{UnitType: UnitTypeRequest, UnitPriceCents: 5}, 120, 0, 600},
		{"per request truncates", Plan{UnitType: UnitTypeRequest, UnitPriceCents: 0.5}, 3, 0, 1},
		{"per MB", Plan{UnitType: UnitTypeMB, UnitPriceCents: 2}, 0, 3 << 20, 6},
		{"per MB truncates", Plan{UnitType: UnitTypeMB, UnitPriceCents: 3}, 0, (1 << 20) + (1 << 19), 4},
		{"zero usage", Plan{UnitType: UnitTypeRequest, UnitPriceCents: 5}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := amountCents(tt.plan, tt.requests, tt.bytes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountCentsUnknownUnitType(t *testing.T) {
	_, err := amountCents(Plan{UnitType: "gigabyte"}, 1, 1)
	assert.ErrorIs(t, err, ErrUnknownUnitType)
}

func TestPreviousMonth(t *testing.T) {
	start, end := previousMonth(time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), end)

	start, end = previousMonth(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), end)
}
