package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLeadMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLeadMetrics(reg)
	m.ObserveSubmission("leads", "created")
	m.ObserveSubmission("leads", "created")
	m.ObserveReconcileLatency("created", 0.02)
	m.ObserveListenerFailure("email")

	if got := testutil.ToFloat64(m.submissionsTotal.WithLabelValues("leads", "created")); got != 2 {
		t.Fatalf("expected 2 submissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.listenerFailures.WithLabelValues("email")); got != 1 {
		t.Fatalf("expected 1 listener failure, got %v", got)
	}
}

func TestLeadMetricsNilSafe(t *testing.T) {
	var m *LeadMetrics
	m.ObserveSubmission("leads", "created")
	m.ObserveReconcileLatency("created", 0.1)
	m.ObserveListenerFailure("sqs")
}

func TestSnapshotSubmissions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLeadMetrics(reg)
	m.ObserveSubmission("waitlist", "created")
	m.ObserveSubmission("leads", "updated")
	m.ObserveSubmission("leads", "created")
	m.ObserveSubmission("leads", "created")

	snap := SnapshotSubmissions(reg)
	if snap.Total != 4 {
		t.Fatalf("expected total 4, got %d", snap.Total)
	}
	if snap.ByOutcome["created"] != 3 || snap.ByOutcome["updated"] != 1 {
		t.Fatalf("unexpected by_outcome %v", snap.ByOutcome)
	}
	if len(snap.Series) != 3 {
		t.Fatalf("expected 3 series, got %d", len(snap.Series))
	}
	first := snap.Series[0]
	if first.Endpoint != "leads" || first.Outcome != "created" || first.Count != 2 {
		t.Fatalf("unexpected first series %+v", first)
	}
}

func TestSnapshotSubmissionsEmptyRegistry(t *testing.T) {
	snap := SnapshotSubmissions(prometheus.NewRegistry())
	if snap.Total != 0 || len(snap.Series) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}
