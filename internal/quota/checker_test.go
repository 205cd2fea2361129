package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/management"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsageSource struct {
	days []management.UsageDay
	err  error

	apiID     string
	clientID  string
	startDate string
	endDate   string
}

func (f *fakeUsageSource) Usage(_ context.Context, apiID, clientID, startDate, endDate string) ([]management.UsageDay, error) {
	f.apiID = apiID
	f.clientID = clientID
	f.startDate = startDate
	f.endDate = endDate
	if f.err != nil {
		return nil, f.err
	}
	return f.days, nil
}

func TestUsedSumsMonthToDate(t *testing.T) {
	source := &fakeUsageSource{days: []management.UsageDay{
		{Date: "2026-08-01", TotalRequests: 400},
		{Date: "2026-08-02", TotalRequests: 250},
		{Date: "2026-08-15", TotalRequests: 349},
	}}
	clk := clock.NewFakeClock(time.Date(2026, time.August, 15, 10, 30, 0, 0, time.UTC))
	checker := NewChecker(source, clk)

	used, err := checker.Used(context.Background(), "api-1", "client-1")
	require.NoError(t, err)

	assert.Equal(t, int64(999), used)
	assert.Equal(t, "api-1", source.apiID)
	assert.Equal(t, "client-1", source.clientID)
	assert.Equal(t, "2026-08-01", source.startDate)
	assert.Equal(t, "2026-08-15", source.endDate)
}

func TestUsedEmptyMonth(t *testing.T) {
	source := &fakeUsageSource{}
	clk := clock.NewFakeClock(time.Date(2026, time.September, 1, 0, 0, 1, 0, time.UTC))
	checker := NewChecker(source, clk)

	used, err := checker.Used(context.Background(), "api-1", "client-1")
	require.NoError(t, err)

	assert.Zero(t, used)
	assert.Equal(t, "2026-09-01", source.startDate)
	assert.Equal(t, "2026-09-01", source.endDate)
}

func TestUsedSourceError(t *testing.T) {
	source := &fakeUsageSource{err: errors.New("timeout")}
	checker := NewChecker(source, clock.SystemClock{})

	_, err := checker.Used(context.Background(), "api-1", "client-1")
	assert.Error(t, err)
}
