package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Sample(OutcomeFeasible)
		m.PowerFlow(time.Millisecond)
		m.Sampling(time.Second)
		m.Sweep(time.Second)
	})
}

func TestSampleCounts(t *testing.T) {
	m := New()
	m.Sample(OutcomeFeasible)
	m.Sample(OutcomeFeasible)
	m.Sample(OutcomeNotConverged)

	expected := `
# HELP flexarea_samples_total Monte Carlo samples processed, by outcome.
# TYPE flexarea_samples_total counter
flexarea_samples_total{outcome="feasible"} 2
flexarea_samples_total{outcome="not_converged"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "flexarea_samples_total"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.samples.WithLabelValues(OutcomeFeasible)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.PowerFlow(3 * time.Millisecond)
	m.Sampling(1500 * time.Millisecond)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "flexarea_power_flow_seconds_count 1")
	assert.Contains(t, string(body), "flexarea_sampling_seconds 1.5")
}
