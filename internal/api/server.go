package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/signaldash/internal/controller"
	"github.com/dgnsrekt/signaldash/internal/relay"
	"github.com/dgnsrekt/signaldash/internal/session"
	"github.com/dgnsrekt/signaldash/internal/signalapi"
	"github.com/dgnsrekt/signaldash/internal/snapshot"
	"github.com/dgnsrekt/signaldash/internal/view"
	"github.com/dgnsrekt/signaldash/internal/web"
)

// Service is the dashboard surface the HTTP layer drives.
type Service interface {
	OpenPage(ctx context.Context, sessionID, ticker string) (controller.Page, error)
	Resolve(sessionID string) (relay.Channel, bool)

	CreateSession(ctx context.Context) (session.Info, error)
	ListSessions(ctx context.Context) ([]session.Info, error)
	GetSession(ctx context.Context, id string) (session.Info, error)
	DeleteSession(ctx context.Context, id string) error
	SubmitTicker(ctx context.Context, id, ticker string) (controller.Result, error)
	ChangeInterval(ctx context.Context, id, interval string) (controller.Result, error)
	ChangeSymbol(ctx context.Context, id, symbol string) (controller.Result, error)
	RunBacktest(ctx context.Context, id string, form view.BacktestForm) (controller.Result, error)
	BacktestDefaults(ctx context.Context, id string) (view.BacktestForm, error)

	CaptureSnapshot(ctx context.Context, sessionID, notes string) (snapshot.Meta, error)
	ListSnapshots(ctx context.Context, sessionID string) ([]snapshot.Meta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error)
	ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Options tunes optional routes.
type Options struct {
	// Gatherer, when set, is exported at /metrics.
	Gatherer prometheus.Gatherer
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("SignalDash API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", docsHandler(opts.Gatherer != nil))
	router.Get("/docs/channel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(channelDocsHTML)); err != nil {
			slog.Debug("channel docs response write failed", "error", err)
		}
	})

	router.Get("/", pageHandler(svc))
	router.Handle("/static/*", web.StaticHandler())
	router.Handle("/ws", relay.WebSocketHandler(svc.Resolve))
	router.Handle("/events", relay.SSEHandler(svc.Resolve))
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	registerHealthHandlers(api)
	registerSessionHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

func pageHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := svc.OpenPage(r.Context(), q.Get("session"), q.Get("ticker"))
		if err != nil {
			slog.Error("open page failed", "error", err)
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		info, err := svc.GetSession(r.Context(), page.SessionID)
		if err != nil {
			slog.Error("page session vanished", "session", page.SessionID, "error", err)
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		data := web.NewPageData(page.SessionID, page.Patch, info.Ticker, signalapi.Interval(info.Interval))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := web.RenderPage(w, data); err != nil {
			slog.Debug("page response write failed", "session", page.SessionID, "error", err)
		}
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *signalapi.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case signalapi.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeSessionNotFound, controller.CodeSnapshotNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeCapture, signalapi.CodeHTTPStatus, signalapi.CodeTransport, signalapi.CodeDecode:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	if errors.Is(err, session.ErrClosed) {
		return huma.Error409Conflict(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
