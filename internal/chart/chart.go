// Package chart builds chart widget specs for the dashboard and tracks the
// lifecycle of the handle that owns the rendered widget.
package chart

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/signaldash/internal/signalapi"
)

// Kind names a chart backend understood by the browser shell.
type Kind string

const (
	KindTradingView Kind = "tradingview"
	KindLine        Kind = "chartjs-line"
	KindCandlestick Kind = "chartjs-candlestick"
)

// Series is the data handed to an adapter for one render.
type Series struct {
	Ticker   string
	Interval signalapi.Interval
	Candles  []signalapi.Candle
}

// Spec is the serialized widget description the browser shell instantiates.
type Spec struct {
	Kind      Kind   `json:"kind"`
	HandleID  uint64 `json:"handle_id"`
	Container string `json:"container"`
	Config    any    `json:"config"`
}

// Adapter turns a series into a widget config for one charting backend.
type Adapter interface {
	Kind() Kind
	Config(s Series, container string) (any, error)
}

// New returns the adapter for kind configured from preset.
func New(kind Kind, preset Preset) (Adapter, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindTradingView, "":
		return &TradingView{Preset: preset}, nil
	case KindLine:
		return &LineChart{Preset: preset}, nil
	case KindCandlestick:
		return &CandlestickChart{Preset: preset}, nil
	default:
		return nil, fmt.Errorf("chart: unknown kind %q", kind)
	}
}

// Tracker hands out handles and counts the ones still alive.
type Tracker struct {
	nextID atomic.Uint64
	live   atomic.Int64

	// OnChange, when set, receives +1 for every opened handle and -1 for every destroyed one.
	OnChange func(delta int)
}

// Open builds a spec through adapter and returns a live handle owning it.
func (t *Tracker) Open(adapter Adapter, s Series, container string) (*Handle, error) {
	cfg, err := adapter.Config(s, container)
	if err != nil {
		return nil, fmt.Errorf("chart: build %s config: %w", adapter.Kind(), err)
	}
	id := t.nextID.Add(1)
	spec := Spec{Kind: adapter.Kind(), HandleID: id, Container: container, Config: cfg}
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("chart: marshal %s spec: %w", adapter.Kind(), err)
	}
	t.live.Add(1)
	if t.OnChange != nil {
		t.OnChange(1)
	}
	return &Handle{id: id, kind: adapter.Kind(), spec: raw, tracker: t}, nil
}

// Live reports how many handles are open.
func (t *Tracker) Live() int {
	return int(t.live.Load())
}

// Handle is one rendered chart instance.
type Handle struct {
	id      uint64
	kind    Kind
	spec    json.RawMessage
	tracker *Tracker

	once      sync.Once
	destroyed atomic.Bool
}

func (h *Handle) ID() uint64 { return h.id }

func (h *Handle) Kind() Kind { return h.kind }

// Spec returns the JSON widget spec.
func (h *Handle) Spec() json.RawMessage { return h.spec }

// Destroy releases the handle. Safe to call more than once and on a nil handle.
func (h *Handle) Destroy() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.destroyed.Store(true)
		h.tracker.live.Add(-1)
		if h.tracker.OnChange != nil {
			h.tracker.OnChange(-1)
		}
	})
}

// Destroyed reports whether Destroy has run.
func (h *Handle) Destroyed() bool {
	return h != nil && h.destroyed.Load()
}
