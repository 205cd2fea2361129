package stream

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/sanarberkebayram/monetizeit/internal/usage/domain"
)

// Emitter appends usage records to the Redis stream consumed by the
// billing worker. Emission is on the request path; a failed append fails
// the request rather than dropping a billable event.
type Emitter struct {
	client *redis.Client
	stream string
}

func NewEmitter(client *redis.Client, stream string) *Emitter {
	return &Emitter{client: client, stream: stream}
}

func (e *Emitter) Emit(ctx context.Context, record domain.Record) (string, error) {
	return e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		Values: record.Values(),
	}).Result()
}
