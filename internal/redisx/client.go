package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Deduper is the dedup capability handed to queue consumers. Keys encode
// (type, order_id) so redelivered messages are recognized across restarts.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type RedisDeduper struct {
	R   *redis.Client
	TTL time.Duration
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	return Exists(ctx, d.R, key)
}

func (d *RedisDeduper) Mark(ctx context.Context, key string) error {
	ttl := d.TTL
	if ttl == 0 {
		ttl = TTLDedup
	}
	return d.R.Set(ctx, key, "1", ttl).Err()
}
