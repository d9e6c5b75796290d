package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// PoolStatter is implemented by *redis.Client.
type PoolStatter interface {
	PoolStats() *redis.PoolStats
}

type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(*redis.PoolStats) uint32
}

// PoolStatsCollector exports go-redis connection pool statistics, labelled
// with the owning service.
type PoolStatsCollector struct {
	pool    PoolStatter
	service string
	metrics []poolMetric
}

// NewPoolStatsCollector creates a collector for pool.
func NewPoolStatsCollector(pool PoolStatter, service string) *PoolStatsCollector {
	metric := func(name, help string, vt prometheus.ValueType, value func(*redis.PoolStats) uint32) poolMetric {
		return poolMetric{
			desc:      prometheus.NewDesc("redis_pool_"+name, help, []string{"service"}, nil),
			valueType: vt,
			value:     value,
		}
	}
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		metrics: []poolMetric{
			metric("hits_total", "Connections taken from the pool without dialing.",
				prometheus.CounterValue, func(s *redis.PoolStats) uint32 { return s.Hits }),
			metric("misses_total", "Connection requests that had to dial.",
				prometheus.CounterValue, func(s *redis.PoolStats) uint32 { return s.Misses }),
			metric("timeouts_total", "Waits for a free connection that timed out.",
				prometheus.CounterValue, func(s *redis.PoolStats) uint32 { return s.Timeouts }),
			metric("total_connections", "Open connections.",
				prometheus.GaugeValue, func(s *redis.PoolStats) uint32 { return s.TotalConns }),
			metric("idle_connections", "Idle open connections.",
				prometheus.GaugeValue, func(s *redis.PoolStats) uint32 { return s.IdleConns }),
			metric("stale_connections_total", "Connections closed as stale.",
				prometheus.CounterValue, func(s *redis.PoolStats) uint32 { return s.StaleConns }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector. The pool is read once per scrape.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.PoolStats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, float64(m.value(stats)), c.service)
	}
}

// RegisterPoolMetrics registers a pool collector with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool PoolStatter, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
