package flagcache_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgk-platform/cgk-sub021/pkg/flagcache"
)

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	m, err := flagcache.NewPrometheusMetrics(reg)
	require.NoError(t, err)

	repo := newRepo(flag("a", true))
	c, _ := newCache(t, repo, flagcache.WithMetrics(m), flagcache.WithConfig(flagcache.Config{L1Capacity: 1}))

	_, _, _ = c.Get(ctx, "a")
	_, _, _ = c.Get(ctx, "a")
	_, _, _ = c.Get(ctx, "missing")
	require.NoError(t, c.Invalidate(ctx, "a"))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, count)

	lookups := []struct {
		tier, result string
		want         float64
	}{
		{"repository", "hit", 1},
		{"l1", "hit", 1},
		{"repository", "negative", 1},
	}
	for _, l := range lookups {
		got, err := gatherCounter(reg, "feature_flags_cache_lookups_total", map[string]string{"tier": l.tier, "result": l.result})
		require.NoError(t, err)
		assert.Equal(t, l.want, got, "%s/%s", l.tier, l.result)
	}

	evictions, err := gatherCounter(reg, "feature_flags_cache_l1_evictions_total", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), evictions)

	invalidations, err := gatherCounter(reg, "feature_flags_cache_invalidations_total", map[string]string{"source": "local", "scope": "key"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), invalidations)

	_, err = flagcache.NewPrometheusMetrics(reg)
	assert.Error(t, err, "registering twice fails")
}

// gatherCounter returns the value of the counter series matching labels.
func gatherCounter(reg *prometheus.Registry, name string, labels map[string]string) (float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return 0, err
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range fam.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, nil
}
