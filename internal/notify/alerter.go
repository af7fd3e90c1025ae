package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/signaldash/internal/signalapi"
	"github.com/dgnsrekt/signaldash/internal/view"
)

const (
	DefaultCooldown = 5 * time.Minute
	deliverTimeout  = 15 * time.Second
)

// Alert is one signal change worth telling someone about.
type Alert struct {
	Ticker     string
	Signal     string
	Confidence *float64
	Logic      []string
	Link       string
}

// Badge returns the badge text for the alert's signal.
func (a Alert) Badge() string { return view.BadgeFor(a.Signal).Text }

func (a Alert) confidenceText() string {
	if a.Confidence == nil {
		return view.PlaceholderNA
	}
	return strconv.FormatFloat(*a.Confidence, 'f', -1, 64) + "%"
}

// Text is the plain-text alert body.
func (a Alert) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s for %s\nConfidence: %s\n", a.Badge(), a.Ticker, a.confidenceText())
	b.WriteString(strings.Join(a.Logic, "\n"))
	if a.Link != "" {
		b.WriteString("\n" + a.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Sink delivers alerts somewhere.
type Sink interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// Recorder observes delivery attempts.
type Recorder interface {
	RecordAlert(sink string, err error)
}

// Alerter turns rendered signals into alerts. A ticker alerts when its
// signal becomes BUY or SELL and differs from the last actionable signal
// seen, at most once per cooldown.
type Alerter struct {
	sinks     []Sink
	cooldown  time.Duration
	now       func() time.Time
	recorder  Recorder
	publicURL string

	mu         sync.Mutex
	lastSignal map[string]string
	lastSent   map[string]time.Time

	wg sync.WaitGroup
}

// AlerterOptions configures an Alerter.
type AlerterOptions struct {
	Sinks     []Sink
	Cooldown  time.Duration
	Now       func() time.Time
	Recorder  Recorder
	PublicURL string
}

func NewAlerter(opts AlerterOptions) *Alerter {
	a := &Alerter{
		sinks:      opts.Sinks,
		cooldown:   opts.Cooldown,
		now:        opts.Now,
		recorder:   opts.Recorder,
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
		lastSignal: make(map[string]string),
		lastSent:   make(map[string]time.Time),
	}
	if a.cooldown <= 0 {
		a.cooldown = DefaultCooldown
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// SignalRendered implements view.SignalListener. Delivery is asynchronous.
func (a *Alerter) SignalRendered(ctx context.Context, ticker string, resp signalapi.SignalResponse) {
	if len(a.sinks) == 0 {
		return
	}
	signal := strings.ToUpper(strings.TrimSpace(resp.Signal))
	if !a.decide(ticker, signal, a.now()) {
		return
	}
	alert := Alert{
		Ticker:     ticker,
		Signal:     signal,
		Confidence: resp.Confidence,
		Logic:      resp.Logic,
	}
	if a.publicURL != "" {
		alert.Link = a.publicURL + "/?ticker=" + ticker
	}

	ctx = context.WithoutCancel(ctx)
	for _, sink := range a.sinks {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.deliver(ctx, sink, alert)
		}()
	}
}

// decide reports whether signal should alert for ticker and records it.
func (a *Alerter) decide(ticker, signal string, now time.Time) bool {
	if signal != "BUY" && signal != "SELL" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastSignal[ticker] == signal {
		return false
	}
	a.lastSignal[ticker] = signal
	if last, ok := a.lastSent[ticker]; ok && now.Sub(last) < a.cooldown {
		slog.Info("alert skipped, cooldown active", "ticker", ticker, "signal", signal)
		return false
	}
	a.lastSent[ticker] = now
	return true
}

func (a *Alerter) deliver(ctx context.Context, sink Sink, alert Alert) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	err := sink.Notify(ctx, alert)
	if a.recorder != nil {
		a.recorder.RecordAlert(sink.Name(), err)
	}
	if err != nil {
		slog.Warn("alert delivery failed", "sink", sink.Name(), "ticker", alert.Ticker, "error", err)
		return
	}
	slog.Info("alert sent", "sink", sink.Name(), "ticker", alert.Ticker, "signal", alert.Signal)
}

// Wait blocks until in-flight deliveries finish.
func (a *Alerter) Wait() {
	a.wg.Wait()
}
