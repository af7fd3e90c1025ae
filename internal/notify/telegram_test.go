package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"RSI (14) < 30!", "RSI \\(14\\) < 30\\!"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeMarkdownV2(tt.input); got != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewTelegramSinkInvalidChatID(t *testing.T) {
	if _, err := NewTelegramSink(TelegramOptions{Token: "x", ChatID: "not-a-number"}); err == nil {
		t.Fatal("expected error for invalid chat ID")
	}
}

func TestTelegramSinkSendsMessage(t *testing.T) {
	var sentText, sentChat, sentMode string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			return okResponse(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"dash","username":"dash_bot"}}`), nil
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			sentText = r.PostForm.Get("text")
			sentChat = r.PostForm.Get("chat_id")
			sentMode = r.PostForm.Get("parse_mode")
			return okResponse(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`), nil
		}
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(`{"ok":false}`)), Header: make(http.Header)}, nil
	})}

	sink, err := NewTelegramSink(TelegramOptions{
		Token:          "TOKEN",
		ChatID:         "42",
		Endpoint:       "http://telegram.test/bot%s/%s",
		HTTPClient:     client,
		RetryDelayBase: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewTelegramSink: %v", err)
	}

	conf := 87.5
	if err := sink.Notify(context.Background(), Alert{Ticker: "AAPL", Signal: "BUY", Confidence: &conf, Logic: []string{"MACD cross."}}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sentChat != "42" || sentMode != "MarkdownV2" {
		t.Fatalf("chat=%q mode=%q", sentChat, sentMode)
	}
	if want := "*🟢 BUY* for `AAPL`\nConfidence: 87\\.5%\nMACD cross\\."; sentText != want {
		t.Fatalf("text = %q; want %q", sentText, want)
	}
}
