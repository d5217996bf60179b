// Package redis opens the shared client backing the identifier lock.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"contactlink/internal/platform/config"
)

const clientName = "contactlink"

// Client embeds the go-redis client so lock code can use it directly.
type Client struct {
	*redis.Client
}

// New returns nil when no URL is configured; callers then lock in-process.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.ClientName = clientName
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the server answers a PING.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// RegisterPoolMetrics exposes connection pool gauges so lock contention on
// the pool is visible next to the lock wait histogram.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "contactlink_redis_pool_total_connections",
			Help: "Open connections in the redis lock pool",
		}, func() float64 { return float64(c.PoolStats().TotalConns) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "contactlink_redis_pool_idle_connections",
			Help: "Idle connections in the redis lock pool",
		}, func() float64 { return float64(c.PoolStats().IdleConns) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "contactlink_redis_pool_timeouts_total",
			Help: "Times a caller waited too long for a pooled connection",
		}, func() float64 { return float64(c.PoolStats().Timeouts) }),
	)
}
