package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	redis "github.com/redis/go-redis/v9"

	"edgeplace/internal/logger"
)

type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to url and retries the initial ping for up to
// connectTimeout.
func NewRedis(ctx context.Context, url, prefix string, ttl, connectTimeout time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	log := logger.FromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := rdb.Ping(ctx).Err()
		if err != nil {
			log.Warn("redis ping failed", "addr", opt.Addr, "err", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(connectTimeout))
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connect %s: %w", opt.Addr, err)
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (c *Redis) Get(ctx context.Context, key Key) ([]byte, error) {
	b, err := c.rdb.Get(ctx, c.prefix+string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (c *Redis) Put(ctx context.Context, key Key, value []byte) error {
	return c.rdb.Set(ctx, c.prefix+string(key), value, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, key Key) error {
	return c.rdb.Del(ctx, c.prefix+string(key)).Err()
}

func (c *Redis) Close() error { return c.rdb.Close() }
