// Package view holds the per-page dashboard state and renders backend
// responses into the page document.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/signaldash/internal/chart"
	"github.com/dgnsrekt/signaldash/internal/signalapi"
)

// Outcome is how one request cycle ended.
type Outcome string

const (
	OutcomeRendered Outcome = "rendered"
	OutcomeErrored  Outcome = "errored"
	OutcomeStale    Outcome = "stale"
	OutcomeSkipped  Outcome = "skipped"
)

// Endpoint names used for metrics.
const (
	EndpointSignal   = "run"
	EndpointLogo     = "logo"
	EndpointNews     = "news"
	EndpointBacktest = "backtest"
)

const backtestLookback = 90 * 24 * time.Hour

// Backend is the signal service the controller reads from.
type Backend interface {
	Signal(ctx context.Context, ticker string, interval signalapi.Interval) (signalapi.SignalResponse, error)
	Logo(ctx context.Context, ticker string) (signalapi.LogoResponse, error)
	News(ctx context.Context, ticker string) ([]signalapi.NewsArticle, error)
	Backtest(ctx context.Context, req signalapi.BacktestRequest) (signalapi.BacktestResponse, error)
}

// Recorder observes request cycles.
type Recorder interface {
	ObserveFetch(endpoint string, outcome Outcome, d time.Duration)
}

// SignalListener is told about every signal that reached the page.
type SignalListener interface {
	SignalRendered(ctx context.Context, ticker string, resp signalapi.SignalResponse)
}

// Result describes one completed cycle.
type Result struct {
	Outcome  Outcome
	Seq      uint64
	Ticker   string
	Interval signalapi.Interval
	Err      error
}

// State is a snapshot of the controller's view state.
type State struct {
	Ticker   string
	Interval signalapi.Interval
	ChartID  uint64
	Outcome  Outcome
}

// BacktestForm is the raw backtest panel input.
type BacktestForm struct {
	Ticker   string `json:"ticker,omitempty" doc:"Defaults to the current ticker"`
	Interval string `json:"interval"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// Options configures a Controller.
type Options struct {
	Backend  Backend
	Document *Document
	Adapter  chart.Adapter
	Tracker  *chart.Tracker
	Recorder Recorder
	Listener SignalListener
	Location *time.Location
	Now      func() time.Time

	DefaultTicker   string
	DefaultInterval signalapi.Interval
}

// lane orders the requests of one panel. Only the most recently issued
// request may touch the document.
type lane struct {
	seq    uint64
	cancel context.CancelFunc
}

func (l *lane) issue(parent context.Context) (uint64, context.Context, context.CancelFunc) {
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	return l.seq, ctx, cancel
}

func (l *lane) current(seq uint64) bool { return l.seq == seq }

func (l *lane) stop() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Controller owns one page's view state. All methods are safe for concurrent use.
type Controller struct {
	backend  Backend
	doc      *Document
	adapter  chart.Adapter
	tracker  *chart.Tracker
	recorder Recorder
	listener SignalListener
	loc      *time.Location
	now      func() time.Time

	mu       sync.Mutex
	ticker   string
	interval signalapi.Interval
	handle   *chart.Handle
	last     Outcome
	closed   bool

	signal   lane
	logo     lane
	news     lane
	backtest lane
}

// NewController builds a controller over opts.Document.
func NewController(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, errors.New("view: backend is required")
	}
	if opts.Document == nil {
		return nil, errors.New("view: document is required")
	}
	c := &Controller{
		backend:  opts.Backend,
		doc:      opts.Document,
		adapter:  opts.Adapter,
		tracker:  opts.Tracker,
		recorder: opts.Recorder,
		listener: opts.Listener,
		loc:      opts.Location,
		now:      opts.Now,
		ticker:   signalapi.NormalizeTicker(opts.DefaultTicker),
		interval: opts.DefaultInterval,
	}
	if c.adapter == nil {
		c.adapter = &chart.TradingView{Preset: chart.DefaultPreset()}
	}
	if c.tracker == nil {
		c.tracker = &chart.Tracker{}
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.ticker == "" {
		c.ticker = "AAPL"
	}
	if !c.interval.Valid() {
		c.interval = signalapi.Interval1m
	}
	c.doc.Apply(
		SetText(ElemInterval, string(c.interval)),
		SetHidden(ElemChart, true),
		SetHidden(ElemLogo, true),
		SetClass(ElemSignal, "badge"),
	)
	return c, nil
}

// State returns the current view state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{Ticker: c.ticker, Interval: c.interval, Outcome: c.last}
	if c.handle != nil {
		s.ChartID = c.handle.ID()
	}
	return s
}

// Pending is an action that has taken its place in the request order but has
// not run its backend requests yet. Calling it performs them and renders.
type Pending func() Result

func settled(res Result) Pending { return func() Result { return res } }

// signalCycle is one issued signal request.
type signalCycle struct {
	seq      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	ticker   string
	interval signalapi.Interval
	skip     bool
}

// SubmitTicker loads ticker: signal first, then logo and news side by side.
// Empty input is ignored.
func (c *Controller) SubmitTicker(ctx context.Context, raw string) Result {
	return c.BeginSubmit(ctx, raw)()
}

// BeginSubmit issues a ticker load. The interval is read when the load is
// issued, so an interval change issued earlier is never lost.
func (c *Controller) BeginSubmit(ctx context.Context, raw string) Pending {
	ticker := signalapi.NormalizeTicker(raw)
	if ticker == "" {
		return settled(Result{Outcome: OutcomeSkipped})
	}
	cyc := c.issueSignal(ctx, ticker, "")
	return func() Result {
		res := c.awaitSignal(ctx, cyc)
		if res.Outcome == OutcomeStale || res.Outcome == OutcomeSkipped {
			return res
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.loadLogo(ctx, ticker, cyc.seq)
		}()
		go func() {
			defer wg.Done()
			c.loadNews(ctx, ticker, cyc.seq)
		}()
		wg.Wait()
		return res
	}
}

// ChangeInterval switches the interval and refetches the current ticker.
func (c *Controller) ChangeInterval(ctx context.Context, raw string) (Result, error) {
	p, err := c.BeginIntervalChange(ctx, raw)
	if err != nil {
		return Result{Outcome: OutcomeSkipped, Err: err}, err
	}
	return p(), nil
}

// BeginIntervalChange issues a refetch of the current ticker at interval raw.
func (c *Controller) BeginIntervalChange(ctx context.Context, raw string) (Pending, error) {
	interval, err := signalapi.ParseInterval(raw)
	if err != nil {
		return nil, err
	}
	cyc := c.issueSignal(ctx, "", interval)
	return func() Result { return c.awaitSignal(ctx, cyc) }, nil
}

// ExternalSymbolChange handles a symbol picked inside the chart widget,
// given as EXCHANGE:TICKER or a bare ticker.
func (c *Controller) ExternalSymbolChange(ctx context.Context, symbol string) Result {
	return c.BeginSymbolChange(ctx, symbol)()
}

// BeginSymbolChange issues the load for a widget symbol change.
func (c *Controller) BeginSymbolChange(ctx context.Context, symbol string) Pending {
	symbol = strings.TrimSpace(symbol)
	if _, after, ok := strings.Cut(symbol, ":"); ok {
		symbol = after
	}
	return c.BeginSubmit(ctx, symbol)
}

// FetchAndRender runs one signal cycle for ticker and interval. A result that
// arrives after a newer cycle was issued is dropped without touching the page.
func (c *Controller) FetchAndRender(ctx context.Context, ticker string, interval signalapi.Interval) Result {
	return c.awaitSignal(ctx, c.issueSignal(ctx, ticker, interval))
}

// issueSignal takes the next signal sequence number and shows the loading
// status. Empty ticker or interval keep the current value.
func (c *Controller) issueSignal(ctx context.Context, ticker string, interval signalapi.Interval) signalCycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ticker == "" {
		ticker = c.ticker
	}
	if interval == "" {
		interval = c.interval
	}
	if c.closed {
		return signalCycle{ticker: ticker, interval: interval, skip: true}
	}
	c.ticker, c.interval = ticker, interval
	seq, reqCtx, cancel := c.signal.issue(ctx)
	c.doc.Apply(
		SetText(ElemStatus, fmt.Sprintf("Loading %s (%s)...", ticker, interval)),
		SetText(ElemInterval, string(interval)),
	)
	return signalCycle{seq: seq, ctx: reqCtx, cancel: cancel, ticker: ticker, interval: interval}
}

func (c *Controller) awaitSignal(ctx context.Context, cyc signalCycle) Result {
	ticker, interval, seq := cyc.ticker, cyc.interval, cyc.seq
	if cyc.skip {
		return Result{Outcome: OutcomeSkipped, Ticker: ticker, Interval: interval}
	}
	defer cyc.cancel()

	start := time.Now()
	resp, err := c.backend.Signal(cyc.ctx, ticker, interval)
	elapsed := time.Since(start)

	res := Result{Seq: seq, Ticker: ticker, Interval: interval, Err: err}

	c.mu.Lock()
	switch {
	case c.closed || !c.signal.current(seq):
		res.Outcome = OutcomeStale
	case err != nil:
		res.Outcome = OutcomeErrored
		c.renderError(signalErrorMessage(err))
	default:
		res.Outcome = OutcomeRendered
		c.renderSignal(ticker, interval, resp)
	}
	if res.Outcome != OutcomeStale {
		c.last = res.Outcome
	}
	c.mu.Unlock()

	c.observe(EndpointSignal, res.Outcome, elapsed)
	switch res.Outcome {
	case OutcomeStale:
		slog.Debug("signal response discarded", "ticker", ticker, "interval", interval, "seq", seq)
	case OutcomeErrored:
		slog.Warn("signal fetch failed", "ticker", ticker, "interval", interval, "error", err)
	case OutcomeRendered:
		if resp.DroppedCandles > 0 {
			slog.Debug("dropped malformed candles", "ticker", ticker, "count", resp.DroppedCandles)
		}
		if c.listener != nil {
			c.listener.SignalRendered(ctx, ticker, resp)
		}
	}
	return res
}

// renderError applies the error state. Caller holds c.mu.
func (c *Controller) renderError(msg string) {
	c.handle.Destroy()
	c.handle = nil
	c.doc.Apply(errorStateOps(msg)...)
}

// renderSignal applies the rendered state and rebuilds the chart. Caller holds c.mu.
func (c *Controller) renderSignal(ticker string, interval signalapi.Interval, resp signalapi.SignalResponse) {
	ops := signalFieldOps(ticker, resp, c.now(), c.loc)

	c.handle.Destroy()
	c.handle = nil
	h, err := c.tracker.Open(c.adapter, chart.Series{Ticker: ticker, Interval: interval, Candles: resp.Candles}, ElemChart)
	if err != nil {
		slog.Warn("chart build failed", "ticker", ticker, "kind", c.adapter.Kind(), "error", err)
		ops = append(ops, SetChart(ElemChart, nil), SetHidden(ElemChart, true))
	} else {
		c.handle = h
		ops = append(ops, SetChart(ElemChart, h.Spec()), SetHidden(ElemChart, false))
	}
	c.doc.Apply(ops...)
}

// RefreshTimestamp re-derives the time-ago text from the stored timestamp.
// It reports whether the text changed.
func (c *Controller) RefreshTimestamp(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	el, ok := c.doc.Element(ElemTimestamp)
	if !ok {
		return false
	}
	raw := el.Attrs[AttrTimestamp]
	if raw == "" {
		return false
	}
	ts, ok := signalapi.ParseTimestamp(raw)
	if !ok {
		return false
	}
	text := FormatTimeAgo(ts, now, c.loc)
	if text == el.Text {
		return false
	}
	c.doc.Apply(SetText(ElemTimestamp, text))
	return true
}

// LoadLogo shows the company logo when the backend has one. Failures hide it.
func (c *Controller) LoadLogo(ctx context.Context, ticker string) Result {
	return c.loadLogo(ctx, ticker, 0)
}

// loadLogo is LoadLogo on behalf of signal cycle after. It is stale when
// a newer signal cycle was issued first. after 0 means no cycle.
func (c *Controller) loadLogo(ctx context.Context, ticker string, after uint64) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Outcome: OutcomeSkipped, Ticker: ticker}
	}
	if after != 0 && !c.signal.current(after) {
		c.mu.Unlock()
		return Result{Outcome: OutcomeStale, Ticker: ticker}
	}
	seq, reqCtx, cancel := c.logo.issue(ctx)
	c.mu.Unlock()
	defer cancel()

	start := time.Now()
	resp, err := c.backend.Logo(reqCtx, ticker)
	elapsed := time.Since(start)

	res := Result{Seq: seq, Ticker: ticker, Err: err}
	c.mu.Lock()
	switch {
	case c.closed || !c.logo.current(seq):
		res.Outcome = OutcomeStale
	case err != nil:
		res.Outcome = OutcomeErrored
		c.doc.Apply(SetHidden(ElemLogo, true), SetAttr(ElemLogo, "src", ""))
	case resp.LogoURL == nil || strings.TrimSpace(*resp.LogoURL) == "" || c.last == OutcomeErrored:
		res.Outcome = OutcomeRendered
		c.doc.Apply(SetHidden(ElemLogo, true), SetAttr(ElemLogo, "src", ""))
	default:
		res.Outcome = OutcomeRendered
		c.doc.Apply(
			SetAttr(ElemLogo, "src", *resp.LogoURL),
			SetAttr(ElemLogo, "alt", ticker+" logo"),
			SetHidden(ElemLogo, false),
		)
	}
	c.mu.Unlock()

	if err != nil && res.Outcome != OutcomeStale {
		slog.Debug("logo fetch failed", "ticker", ticker, "error", err)
	}
	c.observe(EndpointLogo, res.Outcome, elapsed)
	return res
}

// LoadNews fills the news panel for ticker.
func (c *Controller) LoadNews(ctx context.Context, ticker string) Result {
	return c.loadNews(ctx, ticker, 0)
}

// loadNews is LoadNews on behalf of signal cycle after. It is stale when
// a newer signal cycle was issued first. after 0 means no cycle.
func (c *Controller) loadNews(ctx context.Context, ticker string, after uint64) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{Outcome: OutcomeSkipped, Ticker: ticker}
	}
	if after != 0 && !c.signal.current(after) {
		c.mu.Unlock()
		return Result{Outcome: OutcomeStale, Ticker: ticker}
	}
	seq, reqCtx, cancel := c.news.issue(ctx)
	c.doc.Apply(SetHTML(ElemNewsList, placeholderHTML("news-placeholder", MsgNewsLoading)))
	c.mu.Unlock()
	defer cancel()

	start := time.Now()
	articles, err := c.backend.News(reqCtx, ticker)
	elapsed := time.Since(start)

	res := Result{Seq: seq, Ticker: ticker, Err: err}
	c.mu.Lock()
	switch {
	case c.closed || !c.news.current(seq):
		res.Outcome = OutcomeStale
	case err != nil:
		res.Outcome = OutcomeErrored
		c.doc.Apply(SetHTML(ElemNewsList, placeholderHTML("news-placeholder", MsgNewsError)))
	case len(articles) == 0:
		res.Outcome = OutcomeRendered
		c.doc.Apply(SetHTML(ElemNewsList, placeholderHTML("news-placeholder", MsgNewsEmpty)))
	default:
		res.Outcome = OutcomeRendered
		c.doc.Apply(SetHTML(ElemNewsList, newsHTML(articles, c.loc)))
	}
	c.mu.Unlock()

	if res.Outcome == OutcomeErrored {
		slog.Warn("news fetch failed", "ticker", ticker, "error", err)
	}
	c.observe(EndpointNews, res.Outcome, elapsed)
	return res
}

// BacktestDefaults returns the form values the backtest panel starts with.
func (c *Controller) BacktestDefaults(now time.Time) BacktestForm {
	c.mu.Lock()
	ticker := c.ticker
	c.mu.Unlock()
	now = now.In(c.loc)
	return BacktestForm{
		Ticker:   ticker,
		Interval: string(signalapi.Interval1d),
		Start:    now.Add(-backtestLookback).Format(time.DateOnly),
		End:      now.Format(time.DateOnly),
	}
}

// RunBacktest validates form, runs the backtest, and renders the result panel.
// The ticker falls back to the current one.
func (c *Controller) RunBacktest(ctx context.Context, form BacktestForm) Result {
	return c.BeginBacktest(ctx, form)()
}

// BeginBacktest validates form and issues the backtest request. Invalid input
// is rendered right away and never reaches the backend.
func (c *Controller) BeginBacktest(ctx context.Context, form BacktestForm) Pending {
	req := signalapi.BacktestRequest{
		Ticker:   form.Ticker,
		Interval: signalapi.Interval(form.Interval),
		Start:    form.Start,
		End:      form.End,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return settled(Result{Outcome: OutcomeSkipped})
	}
	if strings.TrimSpace(req.Ticker) == "" {
		req.Ticker = c.ticker
	}
	if err := req.Prepare(); err != nil {
		msg := MsgBacktestInvalid
		var verr *signalapi.ValidationError
		if errors.As(err, &verr) && len(verr.Missing) > 0 {
			msg = MsgBacktestMissing
		}
		c.doc.Apply(SetHTML(ElemBacktestResults, placeholderHTML("backtest-placeholder", msg)))
		return settled(Result{Outcome: OutcomeErrored, Ticker: req.Ticker, Err: err})
	}
	seq, reqCtx, cancel := c.backtest.issue(ctx)
	c.doc.Apply(SetHTML(ElemBacktestResults, placeholderHTML("backtest-placeholder", MsgBacktestRunning)))
	return func() Result {
		defer cancel()
		return c.awaitBacktest(reqCtx, seq, req)
	}
}

func (c *Controller) awaitBacktest(ctx context.Context, seq uint64, req signalapi.BacktestRequest) Result {
	start := time.Now()
	resp, err := c.backend.Backtest(ctx, req)
	elapsed := time.Since(start)

	res := Result{Seq: seq, Ticker: req.Ticker, Interval: req.Interval, Err: err}
	c.mu.Lock()
	switch {
	case c.closed || !c.backtest.current(seq):
		res.Outcome = OutcomeStale
	case err != nil:
		res.Outcome = OutcomeErrored
		msg := MsgBacktestError
		if signalapi.ErrorCode(err) == signalapi.CodeHTTPStatus {
			msg = MsgBacktestFailed
		}
		c.doc.Apply(SetHTML(ElemBacktestResults, placeholderHTML("backtest-placeholder", msg)))
	case resp.Error != "":
		res.Outcome = OutcomeErrored
		res.Err = errors.New(resp.Error)
		c.doc.Apply(SetHTML(ElemBacktestResults, placeholderHTML("backtest-placeholder", resp.Error)))
	default:
		res.Outcome = OutcomeRendered
		c.doc.Apply(SetHTML(ElemBacktestResults, backtestHTML(resp)))
	}
	c.mu.Unlock()

	if res.Outcome == OutcomeErrored {
		slog.Warn("backtest failed", "ticker", req.Ticker, "error", res.Err)
	}
	c.observe(EndpointBacktest, res.Outcome, elapsed)
	return res
}

// Close cancels in-flight requests and destroys the chart. Later results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.signal.stop()
	c.logo.stop()
	c.news.stop()
	c.backtest.stop()
	c.handle.Destroy()
	c.handle = nil
}

func (c *Controller) observe(endpoint string, outcome Outcome, d time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveFetch(endpoint, outcome, d)
	}
}
