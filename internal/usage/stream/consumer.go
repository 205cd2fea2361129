package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sanarberkebayram/monetizeit/internal/observability/metrics"
	"github.com/sanarberkebayram/monetizeit/internal/usage/domain"
	"go.uber.org/zap"
)

const (
	readCount    = 10
	readBlock    = time.Second
	emptyBackoff = 100 * time.Millisecond
)

// streamClient is the slice of the Redis client the consumer needs.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, args *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Applier lands a parsed usage record in durable storage. The consumer
// acknowledges an entry only after Apply returns nil; entries that fail
// stay pending for redelivery.
type Applier interface {
	Apply(ctx context.Context, record domain.Record) error
}

// Consumer drains the usage stream through a consumer group and folds
// each entry into the daily aggregates.
type Consumer struct {
	client   streamClient
	applier  Applier
	stream   string
	group    string
	consumer string
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewConsumer(client streamClient, applier Applier, stream, group, consumer string, logger *zap.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		client:   client,
		applier:  applier,
		stream:   stream,
		group:    group,
		consumer: consumer,
		logger:   logger,
		metrics:  m,
	}
}

// EnsureGroup creates the consumer group, creating the stream alongside
// it if needed. A group that already exists is not an error.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run reads batches until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := c.ReadBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.logger.Warn("stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readBlock):
			}
			continue
		}
		if processed == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(emptyBackoff):
			}
		}
	}
}

// ReadBatch pulls up to one batch of entries and processes each one.
// It returns the number of entries handled, acknowledged or not.
func (c *Consumer) ReadBatch(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    readCount,
		Block:    readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	var handled int
	for _, s := range streams {
		for _, message := range s.Messages {
			handled++
			c.handle(ctx, message)
		}
	}
	return handled, nil
}

func (c *Consumer) handle(ctx context.Context, message redis.XMessage) {
	record, err := domain.ParseRecord(message.Values)
	if err != nil {
		// Never ack what was not applied. The entry stays in the
		// pending list for redelivery and operator inspection.
		c.logger.Error("malformed usage entry, leaving pending",
			zap.String("entry_id", message.ID),
			zap.Error(err),
		)
		c.metrics.RecordUsageConsumed(ctx, "malformed")
		return
	}

	if err := c.applier.Apply(ctx, record); err != nil {
		c.logger.Warn("failed to apply usage entry, leaving pending",
			zap.String("entry_id", message.ID),
			zap.String("api_id", record.APIID),
			zap.Error(err),
		)
		return
	}

	if err := c.client.XAck(ctx, c.stream, c.group, message.ID).Err(); err != nil {
		c.logger.Warn("failed to ack usage entry", zap.String("entry_id", message.ID), zap.Error(err))
		return
	}

	c.metrics.RecordUsageConsumed(ctx, "applied")
}
