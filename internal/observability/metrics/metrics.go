package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for call sessions and their
// terminal workflows.
type CallMetrics struct {
	callsTotal          *prometheus.CounterVec
	classificationTotal *prometheus.CounterVec
	classifierFailOpen  prometheus.Counter
	workflowTotal       *prometheus.CounterVec
	handoffTotal        *prometheus.CounterVec
	webhookLatency      *prometheus.HistogramVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Subsystem: "calls",
			Name:      "completed_total",
			Help:      "Completed call sessions by terminal outcome",
		}, []string{"outcome"}),
		classificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Subsystem: "classifier",
			Name:      "decisions_total",
			Help:      "Action classifier decisions by action and status",
		}, []string{"action", "status"}),
		classifierFailOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Subsystem: "classifier",
			Name:      "fail_open_total",
			Help:      "Classifications that fell back to the new-appointment default after an extraction failure",
		}),
		workflowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Subsystem: "workflows",
			Name:      "runs_total",
			Help:      "Terminal workflow executions by kind and status",
		}, []string{"workflow", "status"}),
		handoffTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Subsystem: "handoff",
			Name:      "transfers_total",
			Help:      "Warm transfer attempts by status",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicedesk",
			Subsystem: "http",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound telephony webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.callsTotal,
		m.classificationTotal,
		m.classifierFailOpen,
		m.workflowTotal,
		m.handoffTotal,
		m.webhookLatency,
	)
	return m
}

func (m *CallMetrics) ObserveCallCompleted(outcome string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveClassification(action, status string) {
	if m == nil {
		return
	}
	m.classificationTotal.WithLabelValues(action, status).Inc()
}

// ObserveClassifierFailOpen records a fail-open default, keeping extraction
// outages distinguishable from genuine new-appointment classifications.
func (m *CallMetrics) ObserveClassifierFailOpen() {
	if m == nil {
		return
	}
	m.classifierFailOpen.Inc()
}

func (m *CallMetrics) ObserveWorkflow(workflow, status string) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(workflow, status).Inc()
}

func (m *CallMetrics) ObserveHandoff(status string) {
	if m == nil {
		return
	}
	m.handoffTotal.WithLabelValues(status).Inc()
}

func (m *CallMetrics) ObserveWebhookLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(endpoint).Observe(seconds)
}
