package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// SubmissionCount is one endpoint/outcome counter value.
type SubmissionCount struct {
	Endpoint string `json:"endpoint"`
	Outcome  string `json:"outcome"`
	Count    int64  `json:"count"`
}

// SubmissionSnapshot summarizes submissions since process start.
type SubmissionSnapshot struct {
	Total     int64             `json:"total"`
	ByOutcome map[string]int64  `json:"by_outcome"`
	Series    []SubmissionCount `json:"series"`
}

// SnapshotSubmissions reads the submissions counter back out of gatherer.
func SnapshotSubmissions(gatherer prometheus.Gatherer) SubmissionSnapshot {
	snap := SubmissionSnapshot{ByOutcome: map[string]int64{}, Series: []SubmissionCount{}}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}

	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == SubmissionsMetricName {
			family = mf
			break
		}
	}
	if family == nil {
		return snap
	}

	for _, metric := range family.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		count := int64(metric.GetCounter().GetValue())
		endpoint := labelValue(metric, "endpoint")
		outcome := labelValue(metric, "outcome")
		snap.Total += count
		snap.ByOutcome[outcome] += count
		snap.Series = append(snap.Series, SubmissionCount{Endpoint: endpoint, Outcome: outcome, Count: count})
	}
	sort.Slice(snap.Series, func(i, j int) bool {
		if snap.Series[i].Endpoint == snap.Series[j].Endpoint {
			return snap.Series[i].Outcome < snap.Series[j].Outcome
		}
		return snap.Series[i].Endpoint < snap.Series[j].Endpoint
	})
	return snap
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
