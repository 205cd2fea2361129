package quota

import (
	"context"
	"time"

	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/management"
)

// UsageSource reports recorded usage for an API, per day.
type UsageSource interface {
	Usage(ctx context.Context, apiID, clientID, startDate, endDate string) ([]management.UsageDay, error)
}

// Checker computes month-to-date request totals from the usage source.
// The current request is not counted; the check runs before the request
// is recorded.
type Checker struct {
	source UsageSource
	clock  clock.Clock
}

func NewChecker(source UsageSource, clk clock.Clock) *Checker {
	return &Checker{source: source, clock: clk}
}

// Used returns the number of requests recorded for the API and client
// since the first day of the current month.
func (c *Checker) Used(ctx context.Context, apiID, clientID string) (int64, error) {
	now := c.clock.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	days, err := c.source.Usage(ctx, apiID, clientID,
		monthStart.Format("2006-01-02"),
		now.Format("2006-01-02"),
	)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, day := range days {
		total += day.TotalRequests
	}
	return total, nil
}
