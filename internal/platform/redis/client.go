// Package redis wraps go-redis with health checks and pool metrics.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"trustbridge/internal/platform/config"
)

type poolMetrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	timeouts   prometheus.Counter
	staleConns prometheus.Counter
	totalConns prometheus.Gauge
	idleConns  prometheus.Gauge
}

func newPoolMetrics(reg prometheus.Registerer, service string) *poolMetrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"service": service}
	return &poolMetrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Name:        "trustbridge_redis_pool_hits_total",
			Help:        "Number of times a connection was found in the pool",
			ConstLabels: labels,
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name:        "trustbridge_redis_pool_misses_total",
			Help:        "Number of times a connection was not found in the pool",
			ConstLabels: labels,
		}),
		timeouts: f.NewCounter(prometheus.CounterOpts{
			Name:        "trustbridge_redis_pool_timeouts_total",
			Help:        "Number of times a connection was not obtained due to timeout",
			ConstLabels: labels,
		}),
		staleConns: f.NewCounter(prometheus.CounterOpts{
			Name:        "trustbridge_redis_pool_stale_conns_total",
			Help:        "Number of stale connections removed from the pool",
			ConstLabels: labels,
		}),
		totalConns: f.NewGauge(prometheus.GaugeOpts{
			Name:        "trustbridge_redis_pool_total_conns",
			Help:        "Number of total connections in the pool",
			ConstLabels: labels,
		}),
		idleConns: f.NewGauge(prometheus.GaugeOpts{
			Name:        "trustbridge_redis_pool_idle_conns",
			Help:        "Number of idle connections in the pool",
			ConstLabels: labels,
		}),
	}
}

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
	metrics   *poolMetrics
	lastStats *redis.PoolStats
}

// New creates a Redis client from cfg. Returns nil, nil when the URL is empty.
// Pool metrics are registered on reg when it is non-nil.
func New(cfg config.RedisConfig, reg prometheus.Registerer, service string) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	c := &Client{Client: client}
	if reg != nil {
		c.metrics = newPoolMetrics(reg, service)
	}
	return c, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("redis not configured")
	}
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// RecordPoolStats updates the pool metrics with the current pool statistics.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()

	c.metrics.totalConns.Set(float64(stats.TotalConns))
	c.metrics.idleConns.Set(float64(stats.IdleConns))

	prev := c.lastStats
	if prev == nil {
		prev = &redis.PoolStats{}
	}
	if stats.Hits > prev.Hits {
		c.metrics.hits.Add(float64(stats.Hits - prev.Hits))
	}
	if stats.Misses > prev.Misses {
		c.metrics.misses.Add(float64(stats.Misses - prev.Misses))
	}
	if stats.Timeouts > prev.Timeouts {
		c.metrics.timeouts.Add(float64(stats.Timeouts - prev.Timeouts))
	}
	if stats.StaleConns > prev.StaleConns {
		c.metrics.staleConns.Add(float64(stats.StaleConns - prev.StaleConns))
	}

	c.lastStats = stats
}

// ReportPoolStats records pool statistics every interval until ctx is done.
func (c *Client) ReportPoolStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}
