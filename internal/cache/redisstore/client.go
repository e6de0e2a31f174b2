// Package redisstore wraps the Redis operations used by the dataset store.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
)

// ErrNil reports a missing key.
var ErrNil = redis.Nil

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	c := &Client{rdb: rdb}
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observability.ObserveRedisOp("ping", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// HSetWithIndex writes fields into the hash at key and adds member to the
// sorted set at index in one MULTI/EXEC.
func (c *Client) HSetWithIndex(ctx context.Context, key string, fields map[string]any, index string, score float64, member string) error {
	start := time.Now()
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields)
		p.ZAdd(ctx, index, redis.Z{Score: score, Member: member})
		return nil
	})
	observability.ObserveRedisOp("hset_index", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis HSET %q + ZADD %q: %w", key, index, err)
	}
	return nil
}

// HGetAll returns every field of the hash at key; a missing key yields ErrNil.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	m, err := c.rdb.HGetAll(ctx, key).Result()
	observability.ObserveRedisOp("hgetall", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %q: %w", key, err)
	}
	if len(m) == 0 {
		return nil, ErrNil
	}
	return m, nil
}

// HMGetMany reads the same fields from many hashes in one round trip. A
// missing hash maps to nil.
func (c *Client) HMGetMany(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error) {
	start := time.Now()
	out := make([]map[string]string, len(keys))
	if len(keys) == 0 {
		observability.ObserveRedisOp("hmget", time.Since(start).Seconds())
		return out, nil
	}

	cmds := make([]*redis.SliceCmd, len(keys))
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HMGet(ctx, k, fields...)
		}
		return nil
	})
	observability.ObserveRedisOp("hmget", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis HMGET %d keys (pipeline): %w", len(keys), err)
	}

	for i, cmd := range cmds {
		vals := cmd.Val()
		row := make(map[string]string, len(fields))
		for j, v := range vals {
			if v == nil {
				continue
			}
			switch t := v.(type) {
			case string:
				row[fields[j]] = t
			default:
				row[fields[j]] = fmt.Sprint(t)
			}
		}
		if len(row) > 0 {
			out[i] = row
		}
	}
	return out, nil
}

// ZRevRange returns all members of the sorted set, highest score first.
func (c *Client) ZRevRange(ctx context.Context, key string) ([]string, error) {
	start := time.Now()
	ms, err := c.rdb.ZRevRange(ctx, key, 0, -1).Result()
	observability.ObserveRedisOp("zrevrange", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis ZREVRANGE %q: %w", key, err)
	}
	return ms, nil
}

// DelWithIndex removes key and drops member from the sorted set at index.
func (c *Client) DelWithIndex(ctx context.Context, key, index, member string) error {
	start := time.Now()
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.ZRem(ctx, index, member)
		return nil
	})
	observability.ObserveRedisOp("del_index", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis DEL %q + ZREM %q: %w", key, index, err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
