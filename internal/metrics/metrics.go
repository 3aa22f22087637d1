// Package metrics exposes dataset assembly activity as Prometheus metrics.
// Each Recorder owns its registry so tests and commands never share state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"econdash/internal/dataset"
	"econdash/internal/model"
)

const namespace = "econdash"

type Recorder struct {
	registry      *prometheus.Registry
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	seriesPoints  *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Provider fetches by indicator and outcome.",
		}, []string{"indicator", "series_id", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Provider fetch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"indicator"}),
		seriesPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_points",
			Help:      "Points in the processed series.",
		}, []string{"indicator"}),
	}
	r.registry.MustRegister(r.fetchTotal, r.fetchDuration, r.seriesPoints)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveFetch(indicator model.Indicator, seriesID string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.fetchTotal.WithLabelValues(string(indicator), seriesID, outcome).Inc()
	r.fetchDuration.WithLabelValues(string(indicator)).Observe(duration.Seconds())
}

func (r *Recorder) ObservePoints(indicator model.Indicator, points int) {
	r.seriesPoints.WithLabelValues(string(indicator)).Set(float64(points))
}

// WriteTextfile writes the registry in text exposition format, suitable for
// the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

var _ dataset.Metrics = (*Recorder)(nil)
