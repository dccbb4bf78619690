package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// counterValue returns the value of the named counter carrying every label in want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("audit:record").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("audit:record").End(boom), boom)

	require.Equal(t, 1.0, counterValue(t, reg, "payables_jobs_total", map[string]string{"job": "audit:record", "status": "success"}))
	require.Equal(t, 1.0, counterValue(t, reg, "payables_jobs_total", map[string]string{"job": "audit:record", "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, reg, "payables_jobs_failures_total", map[string]string{"job": "audit:record"}))
}

func TestNotificationsAndNilSafety(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddNotification("request.rejected")
	m.AddNotification("")
	require.Equal(t, 1.0, counterValue(t, reg, "payables_notifications_total", map[string]string{"event": "request.rejected"}))

	var nilMetrics *Metrics
	require.NotPanics(t, func() {
		nilMetrics.AddNotification("request.rejected")
		_ = nilMetrics.Track("x").End(nil)
	})
}
