package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CacheLookups(t *testing.T) {
	m := New()
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveCacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("miss")))
}

func TestMetrics_CompileBatch(t *testing.T) {
	m := New()
	m.ObserveCompileBatch(3, 20*time.Millisecond, nil)
	m.ObserveCompileBatch(2, 10*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.unitsCompiledTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compileBatchesTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compileBatchesTotal.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.compileDurationSeconds))
}

func TestMetrics_Deployments(t *testing.T) {
	m := New()
	m.ObserveDeployment("local", time.Second, nil)
	m.ObserveDeployment("local", time.Second, errors.New("reverted"))
	m.ObserveDeployment("testnet", time.Second, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.deploymentsTotal.WithLabelValues("local", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deploymentsTotal.WithLabelValues("local", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deploymentsTotal.WithLabelValues("testnet", ResultSuccess)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.deployDurationSeconds))
}

func TestMetrics_NilIsInert(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCacheLookup(true)
		m.ObserveCompileBatch(1, time.Second, nil)
		m.ObserveDeployment("local", time.Second, nil)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("ignored.prom"))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveCacheLookup(true)

	path := filepath.Join(t.TempDir(), "ledgerforge.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ledgerforge_cache_lookups_total{result="hit"} 1`)
}
