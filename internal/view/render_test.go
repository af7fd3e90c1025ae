package view

import (
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/signaldash/internal/signalapi"
)

func TestBadgeFor(t *testing.T) {
	cases := map[string]Badge{
		"BUY":     {"🟢 BUY", "badge buy"},
		" buy ":   {"🟢 BUY", "badge buy"},
		"SELL":    {"🔴 SELL", "badge sell"},
		"Sell":    {"🔴 SELL", "badge sell"},
		"HOLD":    {"⚪️ WAIT", "badge wait"},
		"WAIT":    {"⚪️ WAIT", "badge wait"},
		"":        {"⚪️ WAIT", "badge wait"},
		"STRANGE": {"⚪️ WAIT", "badge wait"},
	}
	for in, want := range cases {
		if got := BadgeFor(in); got != want {
			t.Errorf("BadgeFor(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestFormatTimeAgo(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cases := []struct {
		name string
		ago  time.Duration
		loc  *time.Location
		want string
	}{
		{"zero", 0, time.UTC, "Just now"},
		{"59s", 59 * time.Second, time.UTC, "Just now"},
		{"60s", 60 * time.Second, time.UTC, "1 min ago"},
		{"59m59s", time.Hour - time.Second, time.UTC, "59 min ago"},
		{"1h", time.Hour, time.UTC, "Jan 2, 2026 2:04 PM"},
		{"future", -10 * time.Minute, time.UTC, "Just now"},
		{"zone", 2 * time.Hour, ny, "Jan 2, 2026 8:04 AM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatTimeAgo(testNow.Add(-tc.ago), testNow, tc.loc); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
	if got := FormatTimeAgo(time.Time{}, testNow, time.UTC); got != PlaceholderNA {
		t.Fatalf("zero time = %q", got)
	}
}

func TestSignalFieldOpsNumberFormatting(t *testing.T) {
	resp := signalapi.SignalResponse{Confidence: f64(87.5), Price: f64(0.1 + 0.2)}
	doc := NewDocument(nil)
	doc.Apply(signalFieldOps("X", resp, testNow, time.UTC)...)
	conf, _ := doc.Element(ElemConfidence)
	price, _ := doc.Element(ElemPrice)
	if conf.Text != "87.5%" {
		t.Errorf("confidence = %q", conf.Text)
	}
	if price.Text != "$0.30000000000000004" {
		t.Errorf("price = %q", price.Text)
	}
}

func TestPatternCardsKeepLastFive(t *testing.T) {
	var patterns []signalapi.CandlestickPattern
	for _, name := range []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6"} {
		patterns = append(patterns, signalapi.CandlestickPattern{Name: name, Direction: "bullish", Entry: f64(1)})
	}
	doc := NewDocument(nil)
	doc.Apply(signalFieldOps("X", signalapi.SignalResponse{CandlestickPatterns: patterns}, testNow, time.UTC)...)
	el, _ := doc.Element(ElemPatternStack)
	if n := strings.Count(el.HTML, `class="pattern-card"`); n != 5 {
		t.Fatalf("cards = %d, want 5: %s", n, el.HTML)
	}
	if strings.Contains(el.HTML, "p1 ") || !strings.Contains(el.HTML, "p2 ") || !strings.Contains(el.HTML, "p6 ") {
		t.Fatalf("wrong cards kept: %s", el.HTML)
	}
	if !strings.Contains(el.HTML, "SL: <b>N/A</b>") {
		t.Fatalf("missing level placeholder: %s", el.HTML)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 180); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncateRunes("abcdef", 3); got != "abc..." {
		t.Fatalf("got %q", got)
	}
}
