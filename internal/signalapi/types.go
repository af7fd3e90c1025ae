package signalapi

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Interval is a candle resolution understood by the signal backend.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// Intervals lists every supported interval in display order.
var Intervals = []Interval{Interval1m, Interval5m, Interval15m, Interval1h, Interval1d}

// Valid reports whether i is one of the supported intervals.
func (i Interval) Valid() bool {
	for _, v := range Intervals {
		if v == i {
			return true
		}
	}
	return false
}

// ParseInterval normalizes raw and rejects unsupported values.
func ParseInterval(raw string) (Interval, error) {
	iv := Interval(strings.ToLower(strings.TrimSpace(raw)))
	if !iv.Valid() {
		return "", &CodedError{Code: CodeValidation, Message: "unsupported interval " + strconv.Quote(raw)}
	}
	return iv, nil
}

// NormalizeTicker trims and uppercases a user-entered ticker.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// Timestamp accepts ISO strings or epoch numbers. An unparseable value keeps Raw
// and leaves Time zero so renderers can fall back to a placeholder.
type Timestamp struct {
	Time time.Time
	Raw  string
}

func (t Timestamp) Valid() bool { return !t.Time.IsZero() }

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		t.Raw = s
		t.Time, _ = ParseTimestamp(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	t.Raw = string(b)
	t.Time = epochTime(f)
	return nil
}

// ParseTimestamp parses ISO-like strings and numeric epoch strings.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		ts := epochTime(f)
		return ts, !ts.IsZero()
	}
	return time.Time{}, false
}

// epochTime treats values above 1e12 as milliseconds.
func epochTime(v float64) time.Time {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return time.Time{}
	}
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Candle is one well-formed OHLC bar.
type Candle struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// CandlestickPattern is a detected pattern with suggested levels.
type CandlestickPattern struct {
	Name       string   `json:"name"`
	Direction  string   `json:"direction"`
	Entry      *float64 `json:"entry"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

// SignalResponse is the /run payload. Every field is optional.
type SignalResponse struct {
	Ticker              string               `json:"ticker"`
	Signal              string               `json:"signal"`
	Confidence          *float64             `json:"confidence"`
	Price               *float64             `json:"price"`
	Timestamp           Timestamp            `json:"timestamp"`
	EntrySignal         string               `json:"entry_signal"`
	PatternStack        []string             `json:"pattern_stack"`
	Logic               []string             `json:"logic"`
	CandlestickPatterns []CandlestickPattern `json:"candlestick_patterns"`
	EntryPrice          *float64             `json:"entry_price"`
	StopLoss            *float64             `json:"stop_loss"`
	TakeProfit          *float64             `json:"take_profit"`

	// Candles holds the well-formed entries of history (or candles when history is empty).
	Candles []Candle `json:"-"`
	// DroppedCandles counts malformed entries filtered out while decoding.
	DroppedCandles int `json:"-"`
}

func (r *SignalResponse) UnmarshalJSON(b []byte) error {
	type plain SignalResponse
	aux := struct {
		*plain
		History    json.RawMessage `json:"history"`
		RawCandles json.RawMessage `json:"candles"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Candles, r.DroppedCandles = decodeCandles(aux.History)
	if len(r.Candles) == 0 && r.DroppedCandles == 0 {
		r.Candles, r.DroppedCandles = decodeCandles(aux.RawCandles)
	}
	return nil
}

var (
	candleTimeKeys  = []string{"t", "timestamp", "time", "x"}
	candleOpenKeys  = []string{"o", "open"}
	candleHighKeys  = []string{"h", "high"}
	candleLowKeys   = []string{"l", "low"}
	candleCloseKeys = []string{"c", "close"}
)

// decodeCandles keeps entries with a parseable timestamp and four finite numeric
// prices. Anything that is not an array yields no candles.
func decodeCandles(raw json.RawMessage) ([]Candle, int) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, 0
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0
	}
	out := make([]Candle, 0, len(entries))
	dropped := 0
	for _, entry := range entries {
		c, ok := decodeCandle(entry)
		if !ok {
			dropped++
			continue
		}
		out = append(out, c)
	}
	return out, dropped
}

func decodeCandle(raw json.RawMessage) (Candle, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Candle{}, false
	}
	var ts Timestamp
	if v, ok := pick(fields, candleTimeKeys); ok {
		_ = ts.UnmarshalJSON(v)
	}
	if !ts.Valid() {
		return Candle{}, false
	}
	c := Candle{Time: ts.Time}
	for _, f := range []struct {
		keys []string
		dst  *float64
	}{
		{candleOpenKeys, &c.Open},
		{candleHighKeys, &c.High},
		{candleLowKeys, &c.Low},
		{candleCloseKeys, &c.Close},
	} {
		v, ok := pick(fields, f.keys)
		if !ok {
			return Candle{}, false
		}
		n, ok := finiteNumber(v)
		if !ok {
			return Candle{}, false
		}
		*f.dst = n
	}
	return c, true
}

func pick(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// finiteNumber only accepts JSON numbers; quoted numbers are malformed.
func finiteNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// LogoResponse is the /logo payload.
type LogoResponse struct {
	LogoURL *string `json:"logo_url"`
}

// NewsArticle is one /news entry. Datetime is epoch seconds.
type NewsArticle struct {
	Headline string   `json:"headline"`
	URL      string   `json:"url"`
	Summary  string   `json:"summary"`
	Source   string   `json:"source"`
	Datetime *float64 `json:"datetime"`
	Image    string   `json:"image"`
}

// BacktestRequest carries the backtest form. Interval defaults to 1d.
type BacktestRequest struct {
	Ticker   string   `json:"ticker" validate:"required"`
	Interval Interval `json:"interval" default:"1d" validate:"oneof=1m 5m 15m 1h 1d"`
	Start    string   `json:"start" validate:"required,datetime=2006-01-02"`
	End      string   `json:"end" validate:"required,datetime=2006-01-02"`
}

// BacktestMetrics summarizes a backtest run.
type BacktestMetrics struct {
	TotalTrades float64 `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
	AvgReturn   float64 `json:"avg_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// BacktestSignal is one signal transition found by the backtest.
type BacktestSignal struct {
	Timestamp string  `json:"timestamp"`
	Signal    string  `json:"signal"`
	Price     float64 `json:"price"`
}

// BacktestResponse is the /backtest payload; Error is set instead of the rest on failure.
type BacktestResponse struct {
	Metrics *BacktestMetrics `json:"metrics"`
	Signals []BacktestSignal `json:"signals"`
	Error   string           `json:"error"`
}
