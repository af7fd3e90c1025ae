// Package web holds the dashboard page and the browser shell that applies
// server patches to it.
package web

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/dgnsrekt/signaldash/internal/signalapi"
	"github.com/dgnsrekt/signaldash/internal/view"
)

//go:embed templates/index.html static/app.js
var files embed.FS

var pageTmpl = template.Must(template.ParseFS(files, "templates/index.html"))

// Boot is handed to the browser shell inline so the first paint needs no round trip.
type Boot struct {
	SessionID string     `json:"session_id"`
	Patch     view.Patch `json:"patch"`
}

// PageData fills the page template.
type PageData struct {
	Title     string
	Ticker    string
	Intervals []signalapi.Interval
	Interval  signalapi.Interval
	Boot      Boot
}

// NewPageData builds page data with the supported intervals.
func NewPageData(sessionID string, patch view.Patch, ticker string, interval signalapi.Interval) PageData {
	return PageData{
		Title:     "SignalDash",
		Ticker:    ticker,
		Intervals: signalapi.Intervals,
		Interval:  interval,
		Boot:      Boot{SessionID: sessionID, Patch: patch},
	}
}

// RenderPage writes the dashboard page.
func RenderPage(w io.Writer, data PageData) error {
	return pageTmpl.Execute(w, data)
}

// StaticHandler serves the browser shell under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
