package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "waymatcher"

// Metrics. prometheus collectors of the match engine and the http api. a nil *Metrics is a no-op.
type Metrics struct {
	matchDuration *prometheus.HistogramVec
	matchOutcomes *prometheus.CounterVec
	branchCount   prometheus.Histogram
	searchSize    prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Wall clock duration of one track match task.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode", "outcome"}),
		matchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_tasks_total",
			Help:      "Finished match tasks by outcome.",
		}, []string{"outcome"}),
		branchCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_result_branches",
			Help:      "Number of ranked branches returned per successful task.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		searchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_search_extensions",
			Help:      "Child branches created by the branch search per task.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.matchDuration, m.matchOutcomes, m.branchCount, m.searchSize, m.httpRequests, m.httpDuration)
	return m
}

// ObserveMatch. outcome is "ok", "no_match" or the failure kind.
func (m *Metrics) ObserveMatch(mode, outcome string, d time.Duration, branches, extensions int) {
	if m == nil {
		return
	}
	m.matchDuration.WithLabelValues(mode, outcome).Observe(d.Seconds())
	m.matchOutcomes.WithLabelValues(outcome).Inc()
	if outcome == "ok" || outcome == "no_match" {
		m.branchCount.Observe(float64(branches))
		m.searchSize.Observe(float64(extensions))
	}
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
