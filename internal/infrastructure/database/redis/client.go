// Package redis wraps go-redis for the vocabulary store.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/label-traiter/internal/config"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.ErrCodeInternal, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.ErrCodeUnavailable, "redis connection failed")
)

// commands is the subset of redis.UniversalClient the client uses.
type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	Close() error
}

// Client is a standalone Redis connection.
type Client struct {
	rdb    commands
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

func buildOptions(cfg config.RedisConfig) *redis.Options {
	dial := cfg.DialTimeout
	if dial == 0 {
		dial = 5 * time.Second
	}
	return &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     dial,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	}
}

// NewClient connects to the server at cfg.Addr and pings it.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger logging.Logger) (*Client, error) {
	logger = logging.OrNop(logger)
	client := newClientFrom(redis.NewClient(buildOptions(cfg)), logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = client.rdb.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	logger.Info("Redis client connected", logging.String("addr", cfg.Addr), logging.Int("db", cfg.DB))
	return client, nil
}

func newClientFrom(rdb commands, logger logging.Logger) *Client {
	return &Client{rdb: rdb, logger: logging.OrNop(logger)}
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.rdb.Ping(ctx).Err()
}

// SMembers returns every member of the set at key.  A missing key is an
// empty set.
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	start := time.Now()
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnavailable, "SMEMBERS %s", key)
	}
	c.logger.Debug("Redis set read",
		logging.String("key", key),
		logging.Int("members", len(members)),
		logging.Duration("elapsed", time.Since(start)))
	return members, nil
}

// SetSize returns the cardinality of the set at key.
func (c *Client) SetSize(ctx context.Context, key string) (int64, error) {
	if err := c.checkClosed(); err != nil {
		return 0, err
	}
	n, err := c.rdb.SCard(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrCodeUnavailable, "SCARD %s", key)
	}
	return n, nil
}

// Close closes the connection.  Later calls are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("Closing Redis client")
	return c.rdb.Close()
}
