package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	reply []interface{}
	err   error

	keys []string
	args []interface{}
}

func (f *fakeRunner) Run(_ context.Context, keys []string, args ...interface{}) ([]interface{}, error) {
	f.keys = keys
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func TestAllowUnderLimit(t *testing.T) {
	runner := &fakeRunner{reply: []interface{}{int64(1), int64(3), int64(0)}}
	limiter := newLimiter(runner, zap.NewNop())

	result, err := limiter.Allow(context.Background(), "rl:abc", 10)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, int64(10), result.Limit)
	assert.Equal(t, int64(7), result.Remaining)
	assert.Equal(t, []string{"rl:abc"}, runner.keys)
	require.Len(t, runner.args, 4)
	assert.Equal(t, time.Minute.Microseconds(), runner.args[1])
	assert.Equal(t, int64(10), runner.args[2])
}

func TestAllowOverLimit(t *testing.T) {
	// Script reports denial with the window count and reset in micros.
	runner := &fakeRunner{reply: []interface{}{int64(0), int64(10), int64(30 * 1000 * 1000)}}
	limiter := newLimiter(runner, zap.NewNop())

	result, err := limiter.Allow(context.Background(), "rl:abc", 10)
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, 30*time.Second, result.ResetAfter)
}

func TestAllowFailsOpen(t *testing.T) {
	runner := &fakeRunner{err: errors.New("connection refused")}
	limiter := newLimiter(runner, zap.NewNop())

	result, err := limiter.Allow(context.Background(), "rl:abc", 10)
	require.Error(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, int64(10), result.Remaining)
}

func TestAllowMalformedReplyFailsOpen(t *testing.T) {
	runner := &fakeRunner{reply: []interface{}{int64(1)}}
	limiter := newLimiter(runner, zap.NewNop())

	result, err := limiter.Allow(context.Background(), "rl:abc", 10)
	require.Error(t, err)
	assert.True(t, result.Allowed)
}

func TestAllowNonPositiveLimit(t *testing.T) {
	runner := &fakeRunner{}
	limiter := newLimiter(runner, zap.NewNop())

	result, err := limiter.Allow(context.Background(), "rl:abc", 0)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Nil(t, runner.keys)
}

func TestMembersAreUniqueWithinMicrosecond(t *testing.T) {
	runner := &fakeRunner{reply: []interface{}{int64(1), int64(1), int64(0)}}
	limiter := newLimiter(runner, zap.NewNop())

	_, err := limiter.Allow(context.Background(), "rl:abc", 10)
	require.NoError(t, err)
	first := runner.args[3]

	_, err = limiter.Allow(context.Background(), "rl:abc", 10)
	require.NoError(t, err)
	second := runner.args[3]

	assert.NotEqual(t, first, second)
}
