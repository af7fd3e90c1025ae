package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/signaldash/internal/api"
	"github.com/dgnsrekt/signaldash/internal/capture"
	"github.com/dgnsrekt/signaldash/internal/chart"
	"github.com/dgnsrekt/signaldash/internal/config"
	"github.com/dgnsrekt/signaldash/internal/controller"
	"github.com/dgnsrekt/signaldash/internal/metrics"
	"github.com/dgnsrekt/signaldash/internal/netutil"
	"github.com/dgnsrekt/signaldash/internal/notify"
	"github.com/dgnsrekt/signaldash/internal/session"
	"github.com/dgnsrekt/signaldash/internal/signalapi"
	"github.com/dgnsrekt/signaldash/internal/snapshot"
	"github.com/dgnsrekt/signaldash/internal/storage"
	"github.com/dgnsrekt/signaldash/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("signaldash config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"signal_api_base", cfg.SignalAPIBase,
		"chart_kind", cfg.ChartKind,
		"default_ticker", cfg.DefaultTicker,
		"default_interval", cfg.DefaultInterval,
		"alerts", cfg.AlertsConfigured(),
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid display timezone", "timezone", cfg.DisplayTimezone, "error", err)
		os.Exit(1)
	}

	preset := chart.DefaultPreset()
	if cfg.ChartConfig != "" {
		if preset, err = chart.LoadPreset(cfg.ChartConfig); err != nil {
			slog.Error("failed to load chart config", "path", cfg.ChartConfig, "error", err)
			os.Exit(1)
		}
	}
	adapter, err := chart.New(cfg.ChartKind, preset)
	if err != nil {
		slog.Error("invalid chart kind", "chart_kind", cfg.ChartKind, "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)
	tracker := &chart.Tracker{OnChange: rec.ChartDelta}

	backend := signalapi.NewClient(cfg.SignalAPIBase, signalapi.WithTimeout(cfg.RequestTimeout))

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	addr := ln.Addr().String()
	publicURL := cfg.BaseURL(addr)

	var listener view.SignalListener
	alerter, journal := newAlerter(cfg, rec, publicURL)
	if alerter != nil {
		listener = alerter
	}

	sessions := session.NewRegistry(session.Options{
		IdleTTL: cfg.SessionIdleTTL,
		OnCount: rec.SetSessions,
		NewController: func(doc *view.Document) (*view.Controller, error) {
			return view.NewController(view.Options{
				Backend:         backend,
				Document:        doc,
				Adapter:         adapter,
				Tracker:         tracker,
				Recorder:        rec,
				Listener:        listener,
				Location:        loc,
				DefaultTicker:   cfg.DefaultTicker,
				DefaultInterval: cfg.DefaultInterval,
			})
		},
	})

	scheduler, err := session.NewScheduler(sessions, cfg.RefreshSpec, cfg.SweepSpec)
	if err != nil {
		slog.Error("invalid schedule", "refresh", cfg.RefreshSpec, "sweep", cfg.SweepSpec, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	snaps, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to open snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}
	capturer := capture.New(capture.Options{
		CDPURL:  cfg.CDPURL,
		Width:   cfg.CaptureWidth,
		Height:  cfg.CaptureHeight,
		Timeout: cfg.CaptureTimeout,
		Settle:  2 * time.Second,
	}, snaps, rec)

	svc := controller.NewService(sessions, snaps, capturer, publicURL)
	h := api.NewServer(svc, api.Options{Gatherer: reg})

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("signaldash listening", "addr", addr, "url", publicURL, "docs", publicURL+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop()
	sessions.Close()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if alerter != nil {
		alerter.Wait()
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			slog.Warn("alert journal close failed", "error", err)
		}
	}
}

// newAlerter builds the alert fan-out, or returns nil when no sink is configured.
// The returned journal, when non-nil, must be closed after the alerter drains.
func newAlerter(cfg *config.Config, rec *metrics.Recorder, publicURL string) (*notify.Alerter, *storage.Journal) {
	if !cfg.AlertsConfigured() {
		return nil, nil
	}
	var sinks []notify.Sink
	var journal *storage.Journal
	if cfg.AlertJournal != "" {
		journal = storage.NewJournal(cfg.AlertJournal, "alerts", 64, 25)
		sinks = append(sinks, &notify.JournalSink{W: journal})
	}
	if cfg.NTFYEndpoint != "" {
		sinks = append(sinks, &notify.NTFYSink{
			Client:   &http.Client{Timeout: 10 * time.Second},
			Endpoint: cfg.NTFYEndpoint,
		})
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg, err := notify.NewTelegramSink(notify.TelegramOptions{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
		})
		if err != nil {
			slog.Warn("telegram alerts disabled", "error", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return notify.NewAlerter(notify.AlerterOptions{
		Sinks:     sinks,
		Cooldown:  cfg.AlertCooldown,
		Recorder:  rec,
		PublicURL: publicURL,
	}), journal
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
