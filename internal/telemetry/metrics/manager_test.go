package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Registers(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()

	m.CounterIdentityLookups.WithLabelValues("success").Inc()
	m.CounterGuardDecisions.WithLabelValues("admin", "denied", "insufficient_capability").Inc()
	m.CounterRateLimitedRequests.Inc()
	m.HistogramIdentityLookupLatency.Observe(0.2)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["confhub_test_server_identity_lookups"])
	assert.True(t, names["confhub_test_server_guard_decisions"])
	assert.True(t, names["confhub_test_server_rate_limited_requests"])
	assert.True(t, names["confhub_test_server_identity_lookup_duration_seconds"])

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterRateLimitedRequests))
}

func TestManager_SetSessionStatus(t *testing.T) {
	m := NewTestManager()
	all := []string{"unauthenticated", "resolving", "authenticated"}

	m.SetSessionStatus("resolving", all...)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GaugeSessionStatus.WithLabelValues("resolving")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.GaugeSessionStatus.WithLabelValues("authenticated")))

	m.SetSessionStatus("authenticated", all...)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.GaugeSessionStatus.WithLabelValues("resolving")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GaugeSessionStatus.WithLabelValues("authenticated")))
}

func TestManager_IdentityLookupHistogram(t *testing.T) {
	m := NewTestManager()
	m.HistogramIdentityLookupLatency.Observe(0.05)
	m.HistogramIdentityLookupLatency.Observe(1.5)

	metric := &dto.Metric{}
	require.NoError(t, m.HistogramIdentityLookupLatency.Write(metric))

	h := metric.GetHistogram()
	require.NotNil(t, h)
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 1.55, h.GetSampleSum(), 0.0001)
}
