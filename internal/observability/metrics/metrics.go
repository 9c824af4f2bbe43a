package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "leadcapture"
	subsystem = "leads"

	// SubmissionsMetricName is the fully-qualified submissions counter name.
	SubmissionsMetricName = namespace + "_" + subsystem + "_submissions_total"
)

// LeadMetrics exposes counters/histograms for lead intake.
type LeadMetrics struct {
	submissionsTotal *prometheus.CounterVec
	reconcileLatency *prometheus.HistogramVec
	listenerFailures *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submissions_total",
			Help:      "Lead form submissions by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		reconcileLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_latency_seconds",
			Help:      "Latency of the lookup plus insert-or-update round trip",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		listenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "listener_failures_total",
			Help:      "Post-persistence listener failures",
		}, []string{"listener"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.reconcileLatency, m.listenerFailures)
	return m
}

// ObserveSubmission counts one submission. outcome is a reconcile outcome or an error code.
func (m *LeadMetrics) ObserveSubmission(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(endpoint, outcome).Inc()
}

func (m *LeadMetrics) ObserveReconcileLatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.reconcileLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *LeadMetrics) ObserveListenerFailure(listener string) {
	if m == nil {
		return
	}
	m.listenerFailures.WithLabelValues(listener).Inc()
}
