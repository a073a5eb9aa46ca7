package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, fam := range families {
		if fam.GetName() == name {
			return fam
		}
	}
	return nil
}

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	fam := findFamily(families, name)
	if fam == nil {
		return 0
	}
metric:
	for _, m := range fam.GetMetric() {
		got := map[string]string{}
		for _, lp := range m.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		for k, v := range labels {
			if got[k] != v {
				continue metric
			}
		}
		return m.GetCounter().GetValue()
	}
	return 0
}

func TestCallMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCallMetrics(reg)

	m.ObserveCallCompleted("scheduled")
	m.ObserveCallCompleted("scheduled")
	m.ObserveCallCompleted("handoff")
	m.ObserveClassification("new_appointment", "ok")
	m.ObserveClassifierFailOpen()
	m.ObserveWorkflow("schedule", "success")
	m.ObserveHandoff("transferred")

	assert.Equal(t, float64(2), gatherCounter(t, reg, "voicedesk_calls_completed_total", map[string]string{"outcome": "scheduled"}))
	assert.Equal(t, float64(1), gatherCounter(t, reg, "voicedesk_calls_completed_total", map[string]string{"outcome": "handoff"}))
	assert.Equal(t, float64(1), gatherCounter(t, reg, "voicedesk_classifier_decisions_total", map[string]string{"action": "new_appointment", "status": "ok"}))
	assert.Equal(t, float64(1), gatherCounter(t, reg, "voicedesk_classifier_fail_open_total", nil))
	assert.Equal(t, float64(1), gatherCounter(t, reg, "voicedesk_workflows_runs_total", map[string]string{"workflow": "schedule", "status": "success"}))
	assert.Equal(t, float64(1), gatherCounter(t, reg, "voicedesk_handoff_transfers_total", map[string]string{"status": "transferred"}))
}

func TestCallMetricsNilSafe(t *testing.T) {
	var m *CallMetrics
	m.ObserveCallCompleted("scheduled")
	m.ObserveClassification("reschedule", "ok")
	m.ObserveClassifierFailOpen()
	m.ObserveWorkflow("reschedule", "failed")
	m.ObserveHandoff("error")
	m.ObserveWebhookLatency("/webhooks/twilio/voice", 0.01)
}
