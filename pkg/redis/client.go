// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling, byte-valued reads and WATCH-guarded MULTI/EXEC write batches.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// GetBytes returns the value for key and whether it exists.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	if IsNilError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Write is one queued mutation of an Exec batch. A nil Value deletes Key.
type Write struct {
	Key   string
	Value []byte
}

// ErrConflict reports that a watched key changed. Nothing was written.
var ErrConflict = errors.New("redis: watched key changed")

// Expect is a value a key must still hold when Exec runs. Exists false means
// the key must be absent.
type Expect struct {
	Key    string
	Value  []byte
	Exists bool
}

// Exec applies writes inside MULTI/EXEC so they become visible together. The
// keys of expect are WATCHed first and checked against their expected
// values; a mismatch, or a change by another client before EXEC, makes Exec
// return ErrConflict.
func (c *Client) Exec(ctx context.Context, expect []Expect, writes []Write) error {
	keys := make([]string, len(expect))
	for i, e := range expect {
		keys[i] = e.Key
	}
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		if len(keys) > 0 {
			vals, err := tx.MGet(ctx, keys...).Result()
			if err != nil {
				return err
			}
			for i, e := range expect {
				v, exists := vals[i].(string)
				if exists != e.Exists || v != string(e.Value) {
					return ErrConflict
				}
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range writes {
				if w.Value == nil {
					pipe.Del(ctx, w.Key)
					continue
				}
				pipe.Set(ctx, w.Key, w.Value, 0)
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// FlushByPattern scans for keys matching the glob pattern and deletes them,
// returning the number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return deleted, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
