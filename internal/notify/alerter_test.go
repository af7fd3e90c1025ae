package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/signaldash/internal/signalapi"
)

type captureSink struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Notify(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return s.err
}

func (s *captureSink) signals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a.Ticker+":"+a.Signal)
	}
	return out
}

type countingRecorder struct {
	mu     sync.Mutex
	errors int
	oks    int
}

func (r *countingRecorder) RecordAlert(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		return
	}
	r.oks++
}

func TestAlerterDecide(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := NewAlerter(AlerterOptions{Sinks: []Sink{&captureSink{}}})

	steps := []struct {
		ticker string
		signal string
		at     time.Duration
		want   bool
	}{
		{"AAPL", "HOLD", 0, false},
		{"AAPL", "BUY", 0, true},
		{"AAPL", "BUY", time.Minute, false},
		{"AAPL", "SELL", 2 * time.Minute, false},
		{"AAPL", "SELL", 10 * time.Minute, false},
		{"AAPL", "BUY", 11 * time.Minute, true},
		{"MSFT", "SELL", 11 * time.Minute, true},
		{"AAPL", "WAIT", 20 * time.Minute, false},
		{"AAPL", "BUY", 21 * time.Minute, false},
	}
	for i, s := range steps {
		if got := a.decide(s.ticker, s.signal, now.Add(s.at)); got != s.want {
			t.Fatalf("step %d (%s %s): decide = %v, want %v", i, s.ticker, s.signal, got, s.want)
		}
	}
}

func TestAlerterDeliversToEverySink(t *testing.T) {
	good := &captureSink{}
	bad := &captureSink{err: errors.New("down")}
	rec := &countingRecorder{}
	a := NewAlerter(AlerterOptions{Sinks: []Sink{good, bad}, Recorder: rec, PublicURL: "http://dash/"})

	conf := 66.0
	a.SignalRendered(context.Background(), "AAPL", signalapi.SignalResponse{Signal: "buy", Confidence: &conf})
	a.SignalRendered(context.Background(), "AAPL", signalapi.SignalResponse{Signal: "BUY"})
	a.Wait()

	if got := good.signals(); len(got) != 1 || got[0] != "AAPL:BUY" {
		t.Fatalf("alerts = %v", got)
	}
	if good.alerts[0].Link != "http://dash/?ticker=AAPL" {
		t.Fatalf("link = %q", good.alerts[0].Link)
	}
	if rec.oks != 1 || rec.errors != 1 {
		t.Fatalf("recorded ok=%d err=%d", rec.oks, rec.errors)
	}
}

func TestAlerterWithoutSinksIsNoop(t *testing.T) {
	a := NewAlerter(AlerterOptions{})
	a.SignalRendered(context.Background(), "AAPL", signalapi.SignalResponse{Signal: "BUY"})
	a.Wait()
	if len(a.lastSignal) != 0 {
		t.Fatal("alerter without sinks recorded state")
	}
}

func TestAlertText(t *testing.T) {
	a := Alert{Ticker: "TSLA", Signal: "SELL", Logic: []string{"a", "b"}}
	if got, want := a.Text(), "🔴 SELL for TSLA\nConfidence: N/A\na\nb"; got != want {
		t.Fatalf("Text() = %q; want %q", got, want)
	}
}
