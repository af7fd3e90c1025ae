package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dgnsrekt/signaldash/internal/view"
)

func TestObserveFetch(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.ObserveFetch(view.EndpointSignal, view.OutcomeRendered, 20*time.Millisecond)
	r.ObserveFetch(view.EndpointSignal, view.OutcomeStale, 40*time.Millisecond)
	r.ObserveFetch(view.EndpointSignal, view.OutcomeStale, 40*time.Millisecond)

	if got := testutil.ToFloat64(r.fetchTotal.WithLabelValues(view.EndpointSignal, "rendered")); got != 1 {
		t.Fatalf("rendered = %v", got)
	}
	if got := testutil.ToFloat64(r.staleTotal.WithLabelValues(view.EndpointSignal)); got != 2 {
		t.Fatalf("stale = %v", got)
	}
}

func TestGaugesAndCounters(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.ChartDelta(1)
	r.ChartDelta(1)
	r.ChartDelta(-1)
	if got := testutil.ToFloat64(r.liveCharts); got != 1 {
		t.Fatalf("live charts = %v", got)
	}
	r.SetSessions(3)
	if got := testutil.ToFloat64(r.sessions); got != 3 {
		t.Fatalf("sessions = %v", got)
	}
	r.RecordAlert("telegram", errors.New("x"))
	r.RecordAlert("telegram", nil)
	if got := testutil.ToFloat64(r.alertsSent.WithLabelValues("telegram", "error")); got != 1 {
		t.Fatalf("alert errors = %v", got)
	}
	r.RecordSnapshot(nil)
	if got := testutil.ToFloat64(r.snapshots.WithLabelValues("ok")); got != 1 {
		t.Fatalf("snapshots = %v", got)
	}
}

func TestNewOnSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
