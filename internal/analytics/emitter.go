// Package analytics publishes click events to an append-only Redis
// stream. Publishing is best effort: the resolver treats every error
// from this package as non-fatal.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/nkosarev/url-shortener/internal/models"
	"github.com/nkosarev/url-shortener/pkg/base62"
)

// NewPool builds a redigo connection pool. Connections idle longer
// than a minute are health-checked with PING before reuse.
func NewPool(addr, password string, maxIdle int, idleTimeout time.Duration) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: idleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.DialContext(ctx, "tcp", addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Emitter appends click events to a single Redis stream. Stream entries
// carry the short code as a dedicated field, so a downstream consumer
// can process all events for one code in the order they were appended.
type Emitter struct {
	pool   *redis.Pool
	stream string
}

func NewEmitter(pool *redis.Pool, stream string) *Emitter {
	return &Emitter{
		pool:   pool,
		stream: stream,
	}
}

// Publish serializes the event and appends it to the stream. One
// synchronous attempt, no retry queue: delivery is at-least-once from
// the consumer group's perspective and best-effort from the caller's.
func (e *Emitter) Publish(ctx context.Context, event models.ClickEvent) error {
	const op = "analytics.Emitter.Publish"

	if event.EventID == "" {
		event.EventID = base62.Encode(rand.Uint64())
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	conn, err := e.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to get connection: %w", op, err)
	}
	defer conn.Close()

	_, err = redis.DoContext(conn, ctx, "XADD", e.stream, "*",
		"short_code", event.ShortCode,
		"event", payload,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to append event: %w", op, err)
	}

	return nil
}
