// Package session keeps one view controller, document and patch broker per
// open dashboard page.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/signaldash/internal/relay"
	"github.com/dgnsrekt/signaldash/internal/view"
)

// ErrClosed is returned when dispatching to a closed session.
var ErrClosed = errors.New("session: closed")

// Session is one dashboard page.
type Session struct {
	id        string
	createdAt time.Time
	lastSeen  atomic.Int64

	doc    *view.Document
	ctrl   *view.Controller
	broker *relay.Broker

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Info describes a session for listings.
type Info struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeen    time.Time `json:"last_seen"`
	Ticker      string    `json:"ticker"`
	Interval    string    `json:"interval"`
	Outcome     string    `json:"outcome,omitempty"`
	Subscribers int       `json:"subscribers"`
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) Document() *view.Document     { return s.doc }
func (s *Session) Controller() *view.Controller { return s.ctrl }
func (s *Session) Broker() *relay.Broker        { return s.broker }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Touch marks the session as used now.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Info snapshots the session.
func (s *Session) Info() Info {
	st := s.ctrl.State()
	return Info{
		ID:          s.id,
		CreatedAt:   s.createdAt,
		LastSeen:    s.LastSeen(),
		Ticker:      st.Ticker,
		Interval:    string(st.Interval),
		Outcome:     string(st.Outcome),
		Subscribers: s.broker.ClientCount(),
	}
}

// Replay returns the whole page state as a patch event.
func (s *Session) Replay() relay.Event {
	return patchEvent(s.doc.Replay())
}

// Dispatch issues evt in call order, then runs its backend requests on their
// own goroutine so a slow request never blocks a newer one. Because the
// request order is fixed before Dispatch returns, the last event dispatched
// is the one the page ends up showing.
func (s *Session) Dispatch(evt relay.ClientEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.Touch()
	run := s.issue(s.ctx, evt)
	if run == nil {
		return nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := run()
		slog.Debug("client event handled", "session", s.id, "type", evt.Type, "outcome", res.Outcome, "seq", res.Seq)
	}()
	return nil
}

func (s *Session) issue(ctx context.Context, evt relay.ClientEvent) view.Pending {
	switch evt.Type {
	case relay.EventSubmit:
		return s.ctrl.BeginSubmit(ctx, evt.Ticker)
	case relay.EventInterval:
		run, err := s.ctrl.BeginIntervalChange(ctx, evt.Interval)
		if err != nil {
			slog.Debug("interval change rejected", "session", s.id, "interval", evt.Interval, "error", err)
			return nil
		}
		return run
	case relay.EventSymbolChange:
		return s.ctrl.BeginSymbolChange(ctx, evt.Symbol)
	case relay.EventBacktest:
		return s.ctrl.BeginBacktest(ctx, view.BacktestForm{
			Ticker:   evt.Ticker,
			Interval: evt.Interval,
			Start:    evt.Start,
			End:      evt.End,
		})
	}
	return nil
}

// SubmitTicker loads ticker synchronously.
func (s *Session) SubmitTicker(ctx context.Context, ticker string) view.Result {
	s.Touch()
	return s.ctrl.SubmitTicker(ctx, ticker)
}

// ChangeInterval switches interval synchronously.
func (s *Session) ChangeInterval(ctx context.Context, interval string) (view.Result, error) {
	s.Touch()
	return s.ctrl.ChangeInterval(ctx, interval)
}

// close stops the controller, waits for in-flight events and disconnects subscribers.
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.ctrl.Close()
	s.wg.Wait()
	s.broker.Close()
}

func patchEvent(p view.Patch) relay.Event {
	payload, err := json.Marshal(p)
	if err != nil {
		slog.Error("marshal patch", "seq", p.Seq, "error", err)
		payload = []byte(fmt.Sprintf(`{"seq":%d,"ops":[]}`, p.Seq))
	}
	return relay.Event{Feed: relay.FeedPatch, Seq: p.Seq, Payload: string(payload)}
}
