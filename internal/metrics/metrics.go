// Package metrics exposes prometheus instruments for the scrape pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "liquipedia"

// Recorder captures cache and fetch metrics. A nil *Recorder is a valid no-op,
// so components can be built without metrics in tests.
type Recorder struct {
	lookups       *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
}

// NewRecorder creates the instruments and registers them on reg.
// A nil reg leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and outcome (fresh, fetched, stale, empty).",
		}, []string{"cache", "status"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed upstream fetches by cache name.",
		}, []string{"cache"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetch-and-extract calls made on cache misses.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"cache", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Upstream HTTP requests by target page kind and status code.",
		}, []string{"target", "code"}),
	}
	if reg != nil {
		reg.MustRegister(r.lookups, r.fetchFailures, r.fetchDuration, r.httpRequests)
	}
	return r
}

// RecordLookup counts one cache lookup with its resulting status.
func (r *Recorder) RecordLookup(cache, status string) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(cache, status).Inc()
}

// RecordFetch observes one fetch attempt made by a cache.
func (r *Recorder) RecordFetch(cache string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		r.fetchFailures.WithLabelValues(cache).Inc()
	}
	r.fetchDuration.WithLabelValues(cache, outcome).Observe(duration.Seconds())
}

// RecordHTTPRequest counts one upstream request. code 0 means no response was received.
func (r *Recorder) RecordHTTPRequest(target string, code int) {
	if r == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	r.httpRequests.WithLabelValues(target, label).Inc()
}
