package signalapi

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSignalResponseDecodesHistoryAndDropsMalformedCandles(t *testing.T) {
	payload := `{
		"ticker": "AAPL",
		"signal": "BUY",
		"confidence": 87,
		"price": 191.2,
		"timestamp": "2025-05-01T14:30:00-04:00",
		"logic": ["RSI oversold"],
		"history": [
			{"t": "2025-05-01 14:00:00", "o": 190.1, "h": 191.5, "l": 189.9, "c": 191.2},
			{"t": "2025-05-01 14:01:00", "o": "190", "h": 191.5, "l": 189.9, "c": 191.2},
			{"o": 190.1, "h": 191.5, "l": 189.9, "c": 191.2},
			{"t": "2025-05-01 14:02:00", "o": 190.1, "h": null, "l": 189.9, "c": 191.2},
			{"t": "not a time", "o": 1, "h": 1, "l": 1, "c": 1},
			"garbage",
			{"timestamp": 1746110520, "open": 191.2, "high": 192, "low": 191, "close": 191.8}
		]
	}`

	var resp SignalResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got, want := len(resp.Candles), 2; got != want {
		t.Fatalf("len(Candles) = %d, want %d", got, want)
	}
	if got, want := resp.DroppedCandles, 5; got != want {
		t.Fatalf("DroppedCandles = %d, want %d", got, want)
	}
	if got := resp.Candles[1].Time; !got.Equal(time.Unix(1746110520, 0)) {
		t.Fatalf("epoch candle time = %v", got)
	}
	if resp.Confidence == nil || *resp.Confidence != 87 {
		t.Fatalf("Confidence = %v, want 87", resp.Confidence)
	}
	if !resp.Timestamp.Valid() {
		t.Fatalf("Timestamp not parsed from %q", resp.Timestamp.Raw)
	}
}

func TestSignalResponseFallsBackToCandlesKey(t *testing.T) {
	payload := `{"candles": [{"time": "2025-05-01", "open": 1, "high": 2, "low": 0.5, "close": 1.5}]}`
	var resp SignalResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(resp.Candles) != 1 {
		t.Fatalf("len(Candles) = %d, want 1", len(resp.Candles))
	}
	if resp.Confidence != nil || resp.Price != nil {
		t.Fatalf("absent scalars decoded as %v / %v; want nil", resp.Confidence, resp.Price)
	}
}

func TestSignalResponseIgnoresNonArrayHistory(t *testing.T) {
	var resp SignalResponse
	if err := json.Unmarshal([]byte(`{"history": {"oops": true}}`), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(resp.Candles) != 0 {
		t.Fatalf("len(Candles) = %d, want 0", len(resp.Candles))
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{"2025-05-01T14:30:00Z", true, time.Date(2025, 5, 1, 14, 30, 0, 0, time.UTC)},
		{"2025-05-01 14:30:00", true, time.Date(2025, 5, 1, 14, 30, 0, 0, time.UTC)},
		{"1746109800", true, time.Unix(1746109800, 0)},
		{"1746109800000", true, time.UnixMilli(1746109800000)},
		{"", false, time.Time{}},
		{"yesterday", false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	if got, err := ParseInterval(" 1H "); err != nil || got != Interval1h {
		t.Fatalf("ParseInterval(1H) = %q, %v; want 1h", got, err)
	}
	_, err := ParseInterval("2m")
	if ErrorCode(err) != CodeValidation {
		t.Fatalf("ParseInterval(2m) code = %q, want %q", ErrorCode(err), CodeValidation)
	}
}

func TestBacktestRequestPrepare(t *testing.T) {
	req := BacktestRequest{Ticker: " msft ", Start: "2025-01-01", End: "2025-03-31"}
	if err := req.Prepare(); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if req.Ticker != "MSFT" {
		t.Fatalf("Ticker = %q, want MSFT", req.Ticker)
	}
	if req.Interval != Interval1d {
		t.Fatalf("Interval = %q, want default 1d", req.Interval)
	}
}

func TestBacktestRequestPrepareReportsMissingFields(t *testing.T) {
	req := BacktestRequest{Ticker: "AAPL", Interval: Interval5m}
	err := req.Prepare()
	if ErrorCode(err) != CodeValidation {
		t.Fatalf("Prepare() code = %q, want %q", ErrorCode(err), CodeValidation)
	}
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("Prepare() error = %v; want *ValidationError cause", err)
	}
	if len(verr.Missing) != 2 {
		t.Fatalf("Missing = %v, want start and end", verr.Missing)
	}
}

func TestBacktestRequestPrepareRejectsBadDates(t *testing.T) {
	req := BacktestRequest{Ticker: "AAPL", Start: "01/02/2025", End: "2025-03-31"}
	err := req.Prepare()
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("Prepare() error = %v; want *ValidationError cause", err)
	}
	if len(verr.Missing) != 0 || len(verr.Invalid) != 1 || verr.Invalid[0] != "start" {
		t.Fatalf("ValidationError = %+v, want invalid start only", verr)
	}

	req = BacktestRequest{Ticker: "AAPL", Start: "2025-10-01", End: "2025-07-01"}
	err = req.Prepare()
	verr = nil
	if !asValidation(err, &verr) {
		t.Fatalf("Prepare() end before start error = %v; want *ValidationError cause", err)
	}
	if len(verr.Missing) != 0 || len(verr.Invalid) != 1 || verr.Invalid[0] != "end" {
		t.Fatalf("ValidationError = %+v, want invalid end only", verr)
	}

	same := BacktestRequest{Ticker: "AAPL", Start: "2025-07-01", End: "2025-07-01"}
	if err := same.Prepare(); err != nil {
		t.Fatalf("Prepare() same-day range error = %v", err)
	}
}

func asValidation(err error, target **ValidationError) bool {
	coded, ok := err.(*CodedError)
	if !ok {
		return false
	}
	v, ok := coded.Cause.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}
