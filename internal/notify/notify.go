// Package notify delivers signal-change alerts to ntfy and Telegram.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	return send(ctx, client, endpoint, message, nil)
}

func send(ctx context.Context, client *http.Client, endpoint, message string, headers map[string]string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// NTFYSink posts alerts to an ntfy topic URL.
type NTFYSink struct {
	Client   *http.Client
	Endpoint string
}

func (s *NTFYSink) Name() string { return "ntfy" }

// Notify posts the alert text with a title and tags matching the signal.
func (s *NTFYSink) Notify(ctx context.Context, a Alert) error {
	headers := map[string]string{
		"Title": fmt.Sprintf("%s %s", a.Ticker, a.Signal),
		"Tags":  strings.ToLower(a.Signal),
	}
	if a.Link != "" {
		headers["Click"] = a.Link
	}
	return send(ctx, s.Client, s.Endpoint, a.Text(), headers)
}
