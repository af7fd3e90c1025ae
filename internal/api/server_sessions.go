package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/signaldash/internal/controller"
	"github.com/dgnsrekt/signaldash/internal/session"
	"github.com/dgnsrekt/signaldash/internal/view"
)

type sessionIDInput struct {
	SessionID string `path:"session_id" doc:"Dashboard session id"`
}

type sessionOutput struct {
	Body session.Info
}

type resultOutput struct {
	Body controller.Result
}

func registerSessionHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "create-session", Method: http.MethodPost, Path: "/api/v1/sessions", Summary: "Open a dashboard session", DefaultStatus: http.StatusCreated, Tags: []string{"Sessions"}},
		func(ctx context.Context, input *struct{}) (*sessionOutput, error) {
			info, err := svc.CreateSession(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &sessionOutput{Body: info}, nil
		})

	type listSessionsOutput struct {
		Body struct {
			Sessions []session.Info `json:"sessions"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-sessions", Method: http.MethodGet, Path: "/api/v1/sessions", Summary: "List dashboard sessions", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *struct{}) (*listSessionsOutput, error) {
			infos, err := svc.ListSessions(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSessionsOutput{}
			out.Body.Sessions = infos
			if out.Body.Sessions == nil {
				out.Body.Sessions = []session.Info{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-session", Method: http.MethodGet, Path: "/api/v1/sessions/{session_id}", Summary: "Get a dashboard session", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *sessionIDInput) (*sessionOutput, error) {
			info, err := svc.GetSession(ctx, input.SessionID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &sessionOutput{Body: info}, nil
		})

	type deleteSessionOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-session", Method: http.MethodDelete, Path: "/api/v1/sessions/{session_id}", Summary: "Close a dashboard session", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *sessionIDInput) (*deleteSessionOutput, error) {
			if err := svc.DeleteSession(ctx, input.SessionID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteSessionOutput{}
			out.Body.Status = "closed"
			return out, nil
		})

	// --- View commands ---

	type tickerInput struct {
		SessionID string `path:"session_id"`
		Body      struct {
			Ticker string `json:"ticker" doc:"Ticker to load, case-insensitive" example:"AAPL"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "submit-ticker", Method: http.MethodPost, Path: "/api/v1/sessions/{session_id}/ticker", Summary: "Load a ticker", Description: "Fetches the signal, logo and news for the ticker and waits until the page is updated.", Tags: []string{"View"}},
		func(ctx context.Context, input *tickerInput) (*resultOutput, error) {
			res, err := svc.SubmitTicker(ctx, input.SessionID, input.Body.Ticker)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	type intervalInput struct {
		SessionID string `path:"session_id"`
		Body      struct {
			Interval string `json:"interval" doc:"Signal interval" enum:"1m,5m,15m,1h,1d"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "change-interval", Method: http.MethodPost, Path: "/api/v1/sessions/{session_id}/interval", Summary: "Change the signal interval", Tags: []string{"View"}},
		func(ctx context.Context, input *intervalInput) (*resultOutput, error) {
			res, err := svc.ChangeInterval(ctx, input.SessionID, input.Body.Interval)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	type symbolInput struct {
		SessionID string `path:"session_id"`
		Body      struct {
			Symbol string `json:"symbol" doc:"Widget symbol, EXCHANGE:TICKER or a bare ticker" example:"NASDAQ:MSFT"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "change-symbol", Method: http.MethodPost, Path: "/api/v1/sessions/{session_id}/symbol", Summary: "Report a symbol picked in the chart widget", Tags: []string{"View"}},
		func(ctx context.Context, input *symbolInput) (*resultOutput, error) {
			res, err := svc.ChangeSymbol(ctx, input.SessionID, input.Body.Symbol)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	// --- Backtest ---

	type backtestInput struct {
		SessionID string `path:"session_id"`
		Body      view.BacktestForm
	}
	huma.Register(api, huma.Operation{OperationID: "run-backtest", Method: http.MethodPost, Path: "/api/v1/sessions/{session_id}/backtest", Summary: "Run a backtest", Description: "Invalid forms are rendered into the backtest panel and reported with outcome \"errored\".", Tags: []string{"Backtest"}},
		func(ctx context.Context, input *backtestInput) (*resultOutput, error) {
			res, err := svc.RunBacktest(ctx, input.SessionID, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	type backtestDefaultsOutput struct {
		Body view.BacktestForm
	}
	huma.Register(api, huma.Operation{OperationID: "backtest-defaults", Method: http.MethodGet, Path: "/api/v1/sessions/{session_id}/backtest/defaults", Summary: "Default backtest form values", Tags: []string{"Backtest"}},
		func(ctx context.Context, input *sessionIDInput) (*backtestDefaultsOutput, error) {
			form, err := svc.BacktestDefaults(ctx, input.SessionID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &backtestDefaultsOutput{Body: form}, nil
		})
}
