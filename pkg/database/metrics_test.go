package database

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPool redis.PoolStats

func (s *stubPool) PoolStats() *redis.PoolStats {
	stats := redis.PoolStats(*s)
	return &stats
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.Metric, len(families))
	for _, fam := range families {
		require.Len(t, fam.GetMetric(), 1, fam.GetName())
		out[fam.GetName()] = fam.GetMetric()[0]
	}
	return out
}

func TestPoolStatsCollector(t *testing.T) {
	pool := &stubPool{Hits: 41, Misses: 3, Timeouts: 1, TotalConns: 6, IdleConns: 4, StaleConns: 2}
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, pool, "storefront"))

	metrics := gather(t, reg)
	want := map[string]float64{
		"redis_pool_hits_total":              41,
		"redis_pool_misses_total":            3,
		"redis_pool_timeouts_total":          1,
		"redis_pool_stale_connections_total": 2,
		"redis_pool_total_connections":       6,
		"redis_pool_idle_connections":        4,
	}
	require.Len(t, metrics, len(want))
	for name, value := range want {
		m := metrics[name]
		require.NotNil(t, m, name)
		require.Len(t, m.GetLabel(), 1)
		assert.Equal(t, "service", m.GetLabel()[0].GetName())
		assert.Equal(t, "storefront", m.GetLabel()[0].GetValue())
		if m.GetCounter() != nil {
			assert.Equal(t, value, m.GetCounter().GetValue(), name)
		} else {
			assert.Equal(t, value, m.GetGauge().GetValue(), name)
		}
	}
	assert.NotNil(t, metrics["redis_pool_idle_connections"].GetGauge())
	assert.NotNil(t, metrics["redis_pool_hits_total"].GetCounter())
}

func TestPoolStatsCollector_ReadsPoolPerScrape(t *testing.T) {
	pool := &stubPool{IdleConns: 1}
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, pool, "storefront"))

	assert.Equal(t, 1.0, gather(t, reg)["redis_pool_idle_connections"].GetGauge().GetValue())
	pool.IdleConns = 9
	assert.Equal(t, 9.0, gather(t, reg)["redis_pool_idle_connections"].GetGauge().GetValue())
}

func TestRegisterPoolMetrics_Duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, &stubPool{}, "storefront"))
	assert.Error(t, RegisterPoolMetrics(reg, &stubPool{}, "storefront"))
}
