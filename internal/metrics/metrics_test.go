package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/metrics"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var l *metrics.LedgerMetrics
	l.ObserveTransaction("stake", "ok", time.Millisecond)
	l.SetAccounts(1)
	l.SetGrants(1)

	var d *metrics.DecryptMetrics
	d.ObserveRequest("ok", 1)

	var c *metrics.CoprocessorMetrics
	c.SetPrecision(0.5)
}

func TestCoprocessorPrecisionGauge(t *testing.T) {
	m := metrics.Coprocessor()
	require.Same(t, m, metrics.Coprocessor())

	m.SetPrecision(0.001)
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "tzama_coprocessor_precision_error" {
			require.Len(t, mf.GetMetric(), 1)
			require.InDelta(t, 0.001, mf.GetMetric()[0].GetGauge().GetValue(), 1e-12)
			return
		}
	}
	t.Fatal("precision gauge is not registered")
}
