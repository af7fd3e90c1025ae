package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/signaldash/internal/relay"
	"github.com/dgnsrekt/signaldash/internal/signalapi"
	"github.com/dgnsrekt/signaldash/internal/view"
)

type stubBackend struct {
	calls atomic.Int64
}

func (b *stubBackend) Signal(_ context.Context, ticker string, _ signalapi.Interval) (signalapi.SignalResponse, error) {
	b.calls.Add(1)
	price := 100.0
	return signalapi.SignalResponse{
		Ticker:    ticker,
		Signal:    "BUY",
		Price:     &price,
		Timestamp: signalapi.Timestamp{Time: time.Now().Add(-10 * time.Second)},
	}, nil
}

func (b *stubBackend) Logo(context.Context, string) (signalapi.LogoResponse, error) {
	return signalapi.LogoResponse{}, nil
}

func (b *stubBackend) News(context.Context, string) ([]signalapi.NewsArticle, error) {
	return nil, nil
}

func (b *stubBackend) Backtest(context.Context, signalapi.BacktestRequest) (signalapi.BacktestResponse, error) {
	return signalapi.BacktestResponse{}, nil
}

func newTestRegistry(t *testing.T, ttl time.Duration) (*Registry, *stubBackend, *int) {
	t.Helper()
	backend := &stubBackend{}
	count := 0
	reg := NewRegistry(Options{
		IdleTTL: ttl,
		OnCount: func(n int) { count = n },
		NewController: func(doc *view.Document) (*view.Controller, error) {
			return view.NewController(view.Options{Backend: backend, Document: doc})
		},
	})
	t.Cleanup(reg.Close)
	return reg, backend, &count
}

func TestRegistryLifecycle(t *testing.T) {
	reg, _, count := newTestRegistry(t, 0)

	s, err := reg.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if *count != 1 || reg.Len() != 1 {
		t.Fatalf("count = %d, len = %d", *count, reg.Len())
	}
	got, err := reg.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if _, ok := reg.Resolve(s.ID()); !ok {
		t.Fatal("Resolve failed")
	}
	infos := reg.List()
	if len(infos) != 1 || infos[0].Ticker != "AAPL" || infos[0].Interval != "1m" {
		t.Fatalf("List = %+v", infos)
	}

	if err := reg.Delete(s.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if *count != 0 {
		t.Fatalf("count after delete = %d", *count)
	}
	if _, err := reg.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete err = %v", err)
	}
	if err := reg.Delete(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v", err)
	}
	if err := s.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: "X"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Dispatch after close err = %v", err)
	}
}

func TestRegistryGetRejectsMalformedID(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	if _, err := reg.Get("../etc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchPublishesPatches(t *testing.T) {
	reg, backend, _ := newTestRegistry(t, 0)
	s, err := reg.Create()
	if err != nil {
		t.Fatal(err)
	}
	_, events := s.Broker().Subscribe()

	if err := s.Dispatch(relay.ClientEvent{Type: "bogus"}); err == nil {
		t.Fatal("unknown event accepted")
	}
	if err := s.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: "nvda"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			var p view.Patch
			if err := json.Unmarshal([]byte(evt.Payload), &p); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			if p.Seq != evt.Seq {
				t.Fatalf("seq mismatch %d != %d", p.Seq, evt.Seq)
			}
			for _, op := range p.Ops {
				if op.ID == view.ElemTicker && op.Value == "NVDA" {
					if backend.calls.Load() != 1 {
						t.Fatalf("backend calls = %d", backend.calls.Load())
					}
					return
				}
			}
		case <-deadline:
			t.Fatal("rendered patch not published")
		}
	}
}

func TestReplayCarriesCurrentState(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	s, _ := reg.Create()
	s.SubmitTicker(context.Background(), "msft")

	replay := s.Replay()
	var p view.Patch
	if err := json.Unmarshal([]byte(replay.Payload), &p); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, op := range p.Ops {
		if op.ID == view.ElemTicker && op.Value == "MSFT" {
			found = true
		}
	}
	if !found || replay.Seq == 0 {
		t.Fatalf("replay = %+v", p)
	}
}

func TestSweepClosesIdleSessionsWithoutSubscribers(t *testing.T) {
	reg, _, _ := newTestRegistry(t, time.Minute)
	idle, _ := reg.Create()
	watched, _ := reg.Create()
	_, _ = watched.Broker().Subscribe()

	if n := reg.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh sweep closed %d", n)
	}
	if n := reg.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("sweep closed %d, want 1", n)
	}
	if _, err := reg.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatal("idle session survived")
	}
	if _, err := reg.Get(watched.ID()); err != nil {
		t.Fatal("watched session swept")
	}
}

func TestRefreshTimestampsAcrossSessions(t *testing.T) {
	reg, backend, _ := newTestRegistry(t, 0)
	a, _ := reg.Create()
	b, _ := reg.Create()
	a.SubmitTicker(context.Background(), "AAPL")
	b.SubmitTicker(context.Background(), "MSFT")
	calls := backend.calls.Load()

	if n := reg.RefreshTimestamps(time.Now().Add(10 * time.Minute)); n != 2 {
		t.Fatalf("refreshed %d, want 2", n)
	}
	if backend.calls.Load() != calls {
		t.Fatal("refresh called the backend")
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	if _, err := NewScheduler(reg, "not a spec", ""); err == nil {
		t.Fatal("expected error for bad refresh spec")
	}
	s, err := NewScheduler(reg, "", "")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if len(s.Cron.Entries()) != 2 {
		t.Fatalf("entries = %d", len(s.Cron.Entries()))
	}
}

func elementText(t *testing.T, s *Session, id string) string {
	t.Helper()
	el, ok := s.Document().Element(id)
	if !ok {
		t.Fatalf("element %s missing", id)
	}
	return el.Text
}

func TestDispatchLastEventWins(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	for i := 0; i < 200; i++ {
		s, err := reg.Create()
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: "AAA"}); err != nil {
			t.Fatal(err)
		}
		if err := s.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: "BBB"}); err != nil {
			t.Fatal(err)
		}
		s.wg.Wait()
		if got := s.Controller().State().Ticker; got != "BBB" {
			t.Fatalf("run %d: state ticker = %s; want BBB", i, got)
		}
		if got := elementText(t, s, view.ElemTicker); got != "BBB" {
			t.Fatalf("run %d: rendered ticker = %s; want BBB", i, got)
		}
		if err := reg.Delete(s.ID()); err != nil {
			t.Fatal(err)
		}
	}
}

type gatedBackend struct {
	stubBackend
	slow    string
	release chan struct{}
}

func (b *gatedBackend) Signal(ctx context.Context, ticker string, iv signalapi.Interval) (signalapi.SignalResponse, error) {
	if ticker == b.slow {
		<-b.release
	}
	return b.stubBackend.Signal(ctx, ticker, iv)
}

func TestDispatchSlowEarlierSubmitIsDiscarded(t *testing.T) {
	backend := &gatedBackend{slow: "AAA", release: make(chan struct{})}
	reg := NewRegistry(Options{
		NewController: func(doc *view.Document) (*view.Controller, error) {
			return view.NewController(view.Options{Backend: backend, Document: doc})
		},
	})
	t.Cleanup(reg.Close)
	var once sync.Once
	release := func() { once.Do(func() { close(backend.release) }) }
	t.Cleanup(release)
	s, _ := reg.Create()

	if err := s.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: "AAA"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: "BBB"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Controller().State().Outcome != view.OutcomeRendered {
		if time.Now().After(deadline) {
			t.Fatal("BBB never rendered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	release()
	s.wg.Wait()

	if got := elementText(t, s, view.ElemTicker); got != "BBB" {
		t.Fatalf("rendered ticker = %s; want BBB", got)
	}
}

func TestDispatchIntervalThenSubmitKeepsInterval(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	s, _ := reg.Create()
	if err := s.Dispatch(relay.ClientEvent{Type: relay.EventInterval, Interval: "1h"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: "ccc"}); err != nil {
		t.Fatal(err)
	}
	s.wg.Wait()

	st := s.Controller().State()
	if st.Ticker != "CCC" || st.Interval != signalapi.Interval1h {
		t.Fatalf("state = %+v; want CCC at 1h", st)
	}
	if got := elementText(t, s, view.ElemInterval); got != "1h" {
		t.Fatalf("rendered interval = %s; want 1h", got)
	}
}
