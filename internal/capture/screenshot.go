// Package capture renders a dashboard page in headless Chromium and stores a
// screenshot of it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/signaldash/internal/snapshot"
)

// ReadySelector matches the page body once the browser shell applied its first patch.
const ReadySelector = `body[data-ready="1"]`

// ErrCapture wraps every browser-side failure.
var ErrCapture = errors.New("capture failed")

// Options configures a Capturer.
type Options struct {
	// CDPURL points at a running browser. Empty launches a local headless one.
	CDPURL  string
	Width   int
	Height  int
	Format  string
	Quality int
	Timeout time.Duration
	// Settle is extra time after the page is ready, for chart widgets to paint.
	Settle time.Duration
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1440
	}
	if o.Height <= 0 {
		o.Height = 900
	}
	if o.Format != "jpeg" {
		o.Format = "png"
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 90
	}
	if o.Timeout <= 0 {
		o.Timeout = 45 * time.Second
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	return o
}

// Recorder observes capture attempts.
type Recorder interface {
	RecordSnapshot(err error)
}

// Capturer takes dashboard screenshots into a snapshot store.
type Capturer struct {
	opts     Options
	store    *snapshot.Store
	recorder Recorder
}

func New(opts Options, store *snapshot.Store, recorder Recorder) *Capturer {
	return &Capturer{opts: opts.withDefaults(), store: store, recorder: recorder}
}

// Capture loads pageURL, waits for the dashboard to be ready and saves a
// screenshot with meta's descriptive fields.
func (c *Capturer) Capture(ctx context.Context, pageURL string, meta snapshot.Meta) (snapshot.Meta, error) {
	data, err := c.screenshot(ctx, pageURL)
	if c.recorder != nil {
		c.recorder.RecordSnapshot(err)
	}
	if err != nil {
		return snapshot.Meta{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	meta.Format = c.opts.Format
	meta.Width = c.opts.Width
	meta.Height = c.opts.Height
	saved, err := c.store.Create(meta, data)
	if err != nil {
		return snapshot.Meta{}, err
	}
	slog.Info("snapshot captured", "id", saved.ID, "session", saved.SessionID, "bytes", saved.SizeBytes)
	return saved, nil
}

func (c *Capturer) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.CDPURL != "" {
		return chromedp.NewRemoteAllocator(ctx, c.opts.CDPURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(c.opts.Width, c.opts.Height),
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (c *Capturer) screenshot(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	allocCtx, allocCancel := c.allocator(ctx)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	format := page.CaptureScreenshotFormatPng
	if c.opts.Format == "jpeg" {
		format = page.CaptureScreenshotFormatJpeg
	}

	var buf []byte
	err := chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(int64(c.opts.Width), int64(c.opts.Height), 1, false),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(ReadySelector, chromedp.ByQuery),
		chromedp.Sleep(c.opts.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			shot := page.CaptureScreenshot().WithFormat(format)
			if format == page.CaptureScreenshotFormatJpeg {
				shot = shot.WithQuality(int64(c.opts.Quality))
			}
			var err error
			buf, err = shot.Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
