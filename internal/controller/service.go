package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/signaldash/internal/relay"
	"github.com/dgnsrekt/signaldash/internal/session"
	"github.com/dgnsrekt/signaldash/internal/signalapi"
	"github.com/dgnsrekt/signaldash/internal/snapshot"
	"github.com/dgnsrekt/signaldash/internal/view"
)

// Error codes added on top of the backend taxonomy.
const (
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	CodeCapture          = "CAPTURE"
)

// Capturer renders a session page into the snapshot store.
type Capturer interface {
	Capture(ctx context.Context, pageURL string, meta snapshot.Meta) (snapshot.Meta, error)
}

// Result is the outcome of a synchronous session command.
type Result struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Seq       uint64 `json:"seq"`
	Ticker    string `json:"ticker,omitempty"`
	Interval  string `json:"interval,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Page is what the dashboard page template needs to boot a session.
type Page struct {
	SessionID string
	Patch     view.Patch
}

// Service drives dashboard sessions and their snapshots.
type Service struct {
	sessions *session.Registry
	snaps    *snapshot.Store
	capturer Capturer
	baseURL  string
}

// NewService builds the service. capturer may be nil, in which case snapshot
// capture reports a CAPTURE error. baseURL is where the capture browser reaches this server.
func NewService(sessions *session.Registry, snaps *snapshot.Store, capturer Capturer, baseURL string) *Service {
	return &Service{
		sessions: sessions,
		snaps:    snaps,
		capturer: capturer,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &signalapi.CodedError{Code: signalapi.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) session(id string) (*session.Session, error) {
	if err := s.requireNonEmpty(id, "session id"); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(strings.TrimSpace(id))
	if err != nil {
		return nil, sessionErr(id, err)
	}
	return sess, nil
}

func sessionErr(id string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return &signalapi.CodedError{Code: CodeSessionNotFound, Message: "session " + id + " not found", Cause: err}
	}
	return err
}

func snapshotErr(id string, err error) error {
	if errors.Is(err, snapshot.ErrNotFound) {
		return &signalapi.CodedError{Code: CodeSnapshotNotFound, Message: "snapshot " + id + " not found", Cause: err}
	}
	return err
}

func toResult(id string, res view.Result) Result {
	out := Result{
		SessionID: id,
		Outcome:   string(res.Outcome),
		Seq:       res.Seq,
		Ticker:    res.Ticker,
		Interval:  string(res.Interval),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// OpenPage attaches to session id, or creates a session when id is empty or
// unknown. A non-empty ticker, or a fresh session, triggers a background load.
func (s *Service) OpenPage(ctx context.Context, id, ticker string) (Page, error) {
	var sess *session.Session
	fresh := false
	if strings.TrimSpace(id) != "" {
		if got, err := s.sessions.Get(strings.TrimSpace(id)); err == nil {
			sess = got
		}
	}
	if sess == nil {
		created, err := s.sessions.Create()
		if err != nil {
			return Page{}, err
		}
		sess, fresh = created, true
	}

	ticker = strings.TrimSpace(ticker)
	if ticker == "" && fresh {
		ticker = sess.Controller().State().Ticker
	}
	if ticker != "" {
		if err := sess.Dispatch(relay.ClientEvent{Type: relay.EventSubmit, Ticker: ticker}); err != nil {
			return Page{}, err
		}
	}
	sess.Touch()
	return Page{SessionID: sess.ID(), Patch: sess.Document().Replay()}, nil
}

// Resolve finds the live channel for a session id.
func (s *Service) Resolve(id string) (relay.Channel, bool) {
	return s.sessions.Resolve(id)
}

func (s *Service) CreateSession(ctx context.Context) (session.Info, error) {
	sess, err := s.sessions.Create()
	if err != nil {
		return session.Info{}, err
	}
	return sess.Info(), nil
}

func (s *Service) ListSessions(ctx context.Context) ([]session.Info, error) {
	return s.sessions.List(), nil
}

func (s *Service) GetSession(ctx context.Context, id string) (session.Info, error) {
	sess, err := s.session(id)
	if err != nil {
		return session.Info{}, err
	}
	return sess.Info(), nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "session id"); err != nil {
		return err
	}
	return sessionErr(id, s.sessions.Delete(strings.TrimSpace(id)))
}

func (s *Service) SubmitTicker(ctx context.Context, id, ticker string) (Result, error) {
	if err := s.requireNonEmpty(ticker, "ticker"); err != nil {
		return Result{}, err
	}
	sess, err := s.session(id)
	if err != nil {
		return Result{}, err
	}
	return toResult(sess.ID(), sess.SubmitTicker(ctx, ticker)), nil
}

func (s *Service) ChangeInterval(ctx context.Context, id, interval string) (Result, error) {
	if err := s.requireNonEmpty(interval, "interval"); err != nil {
		return Result{}, err
	}
	sess, err := s.session(id)
	if err != nil {
		return Result{}, err
	}
	res, err := sess.ChangeInterval(ctx, interval)
	if err != nil {
		return Result{}, err
	}
	return toResult(sess.ID(), res), nil
}

func (s *Service) ChangeSymbol(ctx context.Context, id, symbol string) (Result, error) {
	if err := s.requireNonEmpty(symbol, "symbol"); err != nil {
		return Result{}, err
	}
	sess, err := s.session(id)
	if err != nil {
		return Result{}, err
	}
	sess.Touch()
	return toResult(sess.ID(), sess.Controller().ExternalSymbolChange(ctx, symbol)), nil
}

// RunBacktest runs the backtest panel. Form problems are rendered into the
// panel and reported in the result, not returned as errors.
func (s *Service) RunBacktest(ctx context.Context, id string, form view.BacktestForm) (Result, error) {
	sess, err := s.session(id)
	if err != nil {
		return Result{}, err
	}
	sess.Touch()
	return toResult(sess.ID(), sess.Controller().RunBacktest(ctx, form)), nil
}

func (s *Service) BacktestDefaults(ctx context.Context, id string) (view.BacktestForm, error) {
	sess, err := s.session(id)
	if err != nil {
		return view.BacktestForm{}, err
	}
	return sess.Controller().BacktestDefaults(time.Now()), nil
}

// CaptureSnapshot screenshots the session's page through a headless browser.
func (s *Service) CaptureSnapshot(ctx context.Context, id, notes string) (snapshot.Meta, error) {
	sess, err := s.session(id)
	if err != nil {
		return snapshot.Meta{}, err
	}
	if s.capturer == nil {
		return snapshot.Meta{}, &signalapi.CodedError{Code: CodeCapture, Message: "snapshot capture is not configured"}
	}
	st := sess.Controller().State()
	signal, _ := sess.Document().Element(view.ElemSignal)
	meta := snapshot.Meta{
		SessionID: sess.ID(),
		Ticker:    st.Ticker,
		Interval:  string(st.Interval),
		Signal:    signal.Text,
		Notes:     strings.TrimSpace(notes),
	}
	pageURL := fmt.Sprintf("%s/?session=%s", s.baseURL, sess.ID())
	saved, err := s.capturer.Capture(ctx, pageURL, meta)
	if err != nil {
		return snapshot.Meta{}, &signalapi.CodedError{Code: CodeCapture, Message: "capture session " + sess.ID(), Cause: err}
	}
	return saved, nil
}

func (s *Service) ListSnapshots(ctx context.Context, sessionID string) ([]snapshot.Meta, error) {
	return s.snaps.List(strings.TrimSpace(sessionID))
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "snapshot id"); err != nil {
		return snapshot.Meta{}, err
	}
	meta, err := s.snaps.Get(strings.TrimSpace(id))
	if err != nil {
		return snapshot.Meta{}, snapshotErr(id, err)
	}
	return meta, nil
}

func (s *Service) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	if err := s.requireNonEmpty(id, "snapshot id"); err != nil {
		return nil, "", err
	}
	data, format, err := s.snaps.ReadImage(strings.TrimSpace(id))
	if err != nil {
		return nil, "", snapshotErr(id, err)
	}
	return data, format, nil
}

func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "snapshot id"); err != nil {
		return err
	}
	return snapshotErr(id, s.snaps.Delete(strings.TrimSpace(id)))
}
