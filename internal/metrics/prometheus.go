// Package metrics records dashboard activity with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dgnsrekt/signaldash/internal/view"
)

// Recorder implements view.Recorder and the process gauges.
type Recorder struct {
	fetchDuration *prometheus.HistogramVec
	fetchTotal    *prometheus.CounterVec
	staleTotal    *prometheus.CounterVec
	liveCharts    prometheus.Gauge
	sessions      prometheus.Gauge
	alertsSent    *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
}

// New registers the dashboard metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaldash_backend_request_duration_seconds",
				Help:    "Duration of signal backend requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldash_backend_requests_total",
				Help: "Total number of signal backend requests by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		staleTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldash_stale_responses_total",
				Help: "Responses discarded because a newer request was issued",
			},
			[]string{"endpoint"},
		),
		liveCharts: f.NewGauge(prometheus.GaugeOpts{
			Name: "signaldash_live_charts",
			Help: "Chart widget handles currently alive",
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "signaldash_sessions",
			Help: "Open page sessions",
		}),
		alertsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldash_alerts_total",
				Help: "Signal alerts delivered by sink and result",
			},
			[]string{"sink", "result"},
		),
		snapshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldash_snapshots_total",
				Help: "Dashboard snapshot captures by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveFetch records one backend request cycle.
func (r *Recorder) ObserveFetch(endpoint string, outcome view.Outcome, d time.Duration) {
	r.fetchTotal.WithLabelValues(endpoint, string(outcome)).Inc()
	if outcome == view.OutcomeStale {
		r.staleTotal.WithLabelValues(endpoint).Inc()
	}
	if outcome != view.OutcomeSkipped {
		r.fetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

// ChartDelta adjusts the live chart gauge. It matches chart.Tracker.OnChange.
func (r *Recorder) ChartDelta(delta int) {
	r.liveCharts.Add(float64(delta))
}

// SetSessions records the open session count.
func (r *Recorder) SetSessions(n int) {
	r.sessions.Set(float64(n))
}

// RecordAlert records one alert delivery attempt.
func (r *Recorder) RecordAlert(sink string, err error) {
	r.alertsSent.WithLabelValues(sink, result(err)).Inc()
}

// RecordSnapshot records one capture attempt.
func (r *Recorder) RecordSnapshot(err error) {
	r.snapshots.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
