// Package redis backs request replay records and per-caller quotas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

const keyNamespace = "relief"

var errNotConnected = errors.New("redis client not initialized")

// commands is the slice of go-redis the client depends on.
type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

type Client struct {
	cmds commands
	conn *redis.Client
}

// IdempotencyStore persists the first response for an Idempotency-Key.
type IdempotencyStore interface {
	Replay(ctx context.Context, scope, key string) (string, bool, error)
	Remember(ctx context.Context, scope, key, record string, ttl time.Duration) (bool, error)
}

// RateLimiter counts requests per scope in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, scope string, limit int64, window time.Duration) (Quota, error)
}

// Quota is the outcome of one rate limit check.
type Quota struct {
	Allowed bool
	Used    int64
	Limit   int64
	ResetIn time.Duration
}

// Remaining never goes negative, even after the limit is exceeded.
func (q Quota) Remaining() int64 {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// New dials redis and pings it before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_addr", opts.Addr), "redis connection established")
	}
	return &Client{cmds: conn, conn: conn}, nil
}

// dialOptions prefers RELIEF_REDIS_URL and lets the explicit pool settings
// fill whatever the URL leaves unset.
func dialOptions(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

// Replay loads the record stored for scope and key. ok is false when none exists.
func (c *Client) Replay(ctx context.Context, scope, key string) (string, bool, error) {
	if c.cmds == nil {
		return "", false, errNotConnected
	}
	record, err := c.cmds.Get(ctx, namespaced("idempotency", scope, key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return record, true, nil
}

// Remember stores record unless one already exists. The first writer wins.
func (c *Client) Remember(ctx context.Context, scope, key, record string, ttl time.Duration) (bool, error) {
	if c.cmds == nil {
		return false, errNotConnected
	}
	return c.cmds.SetNX(ctx, namespaced("idempotency", scope, key), record, ttl).Result()
}

// Allow increments the counter for scope. The window starts on the first hit.
func (c *Client) Allow(ctx context.Context, scope string, limit int64, window time.Duration) (Quota, error) {
	if c.cmds == nil {
		return Quota{}, errNotConnected
	}
	key := namespaced("rate_limit", scope)
	used, err := c.cmds.Incr(ctx, key).Result()
	if err != nil {
		return Quota{}, err
	}
	if err := c.cmds.ExpireNX(ctx, key, window).Err(); err != nil {
		return Quota{}, err
	}
	quota := Quota{Allowed: used <= limit, Used: used, Limit: limit, ResetIn: window}
	if ttl, err := c.cmds.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		quota.ResetIn = ttl
	}
	return quota, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.cmds == nil {
		return errNotConnected
	}
	return c.cmds.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func namespaced(parts ...string) string {
	key := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key = append(key, part)
		}
	}
	return strings.Join(key, ":")
}
