package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "arena:dedupe:"
	defaultRedisTTL    = 24 * time.Hour
)

// redisDeduper shares seen ids between replicas with SET NX and a TTL.
type redisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper returns a Deduper backed by client.
func NewRedisDeduper(client *redis.Client, opts ...Option) Deduper {
	cfg := options{prefix: defaultRedisPrefix, ttl: defaultRedisTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &redisDeduper{client: client, prefix: cfg.prefix, ttl: cfg.ttl}
}

func (d *redisDeduper) SeenAndRecord(ctx context.Context, id string) (bool, error) {
	created, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe set %s: %w", id, err)
	}
	return !created, nil
}

func (d *redisDeduper) Unrecord(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, d.prefix+id).Err(); err != nil {
		return fmt.Errorf("dedupe del %s: %w", id, err)
	}
	return nil
}

// Size counts live keys under the prefix. It scans, so keep it off hot paths.
func (d *redisDeduper) Size() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := d.client.Scan(ctx, cursor, d.prefix+"*", 500).Result()
		if err != nil {
			return total
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total
		}
	}
}
