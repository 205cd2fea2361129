package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"github.com/sanarberkebayram/monetizeit/internal/observability/metrics"
	"github.com/sanarberkebayram/monetizeit/internal/payment"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrUnknownUnitType = errors.New("unknown_plan_unit_type")

// UsageReader supplies the usage totals the engine prices against.
type UsageReader interface {
	SumRange(ctx context.Context, apiID, clientID string, start, end time.Time) (requests, bytes int64, err error)
}

// Engine settles the previous calendar month for every active
// subscription. Runs are idempotent: a subscription with an invoice for
// the period is skipped, and a processor failure leaves no local row so
// the next run retries it.
type Engine struct {
	db        *gorm.DB
	usage     UsageReader
	processor payment.Processor
	holder    *config.BillingConfigHolder
	node      *snowflake.Node
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewEngine(
	db *gorm.DB,
	usage UsageReader,
	processor payment.Processor,
	holder *config.BillingConfigHolder,
	node *snowflake.Node,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Engine {
	return &Engine{
		db:        db,
		usage:     usage,
		processor: processor,
		holder:    holder,
		node:      node,
		clock:     clk,
		logger:    logger,
		metrics:   m,
	}
}

// RunOnce bills every active subscription for the previous calendar
// month. Per-subscription failures are joined and returned; one bad
// subscription does not stop the run.
func (e *Engine) RunOnce(ctx context.Context) error {
	periodStart, periodEnd := previousMonth(e.clock.Now())

	var subscriptions []Subscription
	if err := e.db.WithContext(ctx).Where("status = ?", "active").Find(&subscriptions).Error; err != nil {
		return err
	}

	e.logger.Info("billing run started",
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd),
		zap.Int("subscriptions", len(subscriptions)),
	)

	var errs []error
	for _, sub := range subscriptions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.billSubscription(ctx, sub, periodStart, periodEnd); err != nil {
			errs = append(errs, fmt.Errorf("subscription %d: %w", sub.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) billSubscription(ctx context.Context, sub Subscription, periodStart, periodEnd time.Time) error {
	var existing int64
	err := e.db.WithContext(ctx).
		Model(&Invoice{}).
		Where("subscription_id = ? AND period_start = ?", sub.ID, periodStart).
		Count(&existing).Error
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	var plan Plan
	if err := e.db.WithContext(ctx).First(&plan, "id = ?", sub.PlanID).Error; err != nil {
		return fmt.Errorf("plan %d: %w", sub.PlanID, err)
	}

	var client Client
	if err := e.db.WithContext(ctx).First(&client, "id = ?", sub.ClientID).Error; err != nil {
		return fmt.Errorf("client %s: %w", sub.ClientID, err)
	}

	requests, bytes, err := e.usage.SumRange(ctx, sub.APIID, sub.ClientID, periodStart, periodEnd)
	if err != nil {
		return err
	}

	amountCents, err := amountCents(plan, requests, bytes)
	if err != nil {
		return err
	}
	if amountCents == 0 {
		e.logger.Debug("skipping zero-amount period",
			zap.Int64("subscription_id", sub.ID),
			zap.Time("period_start", periodStart),
		)
		return nil
	}

	billingCfg := e.holder.Get()
	description := fmt.Sprintf("%s usage %s", plan.Name, periodStart.Format("2006-01"))

	// Flat subscriptions bill through their processor price; only
	// metered plans need a usage line item.
	if plan.UnitType != UnitTypeSubscription {
		if err := e.processor.CreateInvoiceItem(ctx, payment.InvoiceItem{
			CustomerID:  client.ProcessorCustomerID,
			AmountCents: amountCents,
			Currency:    billingCfg.Currency,
			Description: description,
		}); err != nil {
			return err
		}
	}

	processorInvoiceID, err := e.processor.CreateInvoice(ctx, payment.InvoiceRequest{
		CustomerID:  client.ProcessorCustomerID,
		Currency:    billingCfg.Currency,
		Description: description,
		Metadata: map[string]string{
			"subscription_id": fmt.Sprintf("%d", sub.ID),
			"period_start":    periodStart.Format("2006-01-02"),
		},
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	invoice := Invoice{
		ID:                 e.node.Generate().Int64(),
		SubscriptionID:     sub.ID,
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		AmountCents:        amountCents,
		Currency:           billingCfg.Currency,
		Status:             InvoiceStatusDraft,
		ProcessorInvoiceID: processorInvoiceID,
		Metadata: datatypes.JSONMap{
			"requests": requests,
			"bytes":    bytes,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		// A concurrent run already settled this period; the processor
		// side is duplicated but the ledger stays consistent.
		if isDuplicateKey(err) {
			e.logger.Warn("invoice already recorded for period",
				zap.Int64("subscription_id", sub.ID),
				zap.Time("period_start", periodStart),
			)
			return nil
		}
		return err
	}

	e.metrics.RecordInvoiceCreated(ctx, plan.UnitType)
	e.logger.Info("invoice created",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("amount_cents", amountCents),
		zap.String("processor_invoice_id", processorInvoiceID),
	)
	return nil
}

// amountCents prices one period of usage under a plan. Fractional cents
// truncate toward zero.
func amountCents(plan Plan, requests, bytes int64) (int64, error) {
	switch plan.UnitType {
	case UnitTypeSubscription:
		return plan.PriceCents, nil
	case UnitTypeRequest:
		return int64(float64(requests) * plan.UnitPriceCents), nil
	case UnitTypeMB:
		megabytes := float64(bytes) / (1 << 20)
		return int64(megabytes * plan.UnitPriceCents), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnitType, plan.UnitType)
	}
}

// previousMonth returns [start, end) of the calendar month before now.
func previousMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -1, 0)
	return start, end
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
