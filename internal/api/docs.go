package api

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
)

type docsLink struct {
	Href  string
	Label string
}

// docsLinks is the nav of the REST reference. /metrics is listed only when exported.
func docsLinks(metrics bool) []docsLink {
	links := []docsLink{
		{Href: "/", Label: "Dashboard"},
		{Href: "/docs/channel", Label: "Patch Channel"},
		{Href: "/openapi.json", Label: "OpenAPI"},
		{Href: "/health", Label: "Health"},
	}
	if metrics {
		links = append(links, docsLink{Href: "/metrics", Label: "Metrics"})
	}
	return links
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>SignalDash API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { background: #0d1117; display: flex; flex-direction: column; height: 100vh; margin: 0; }
    nav { align-items: center; background: #161b22; border-bottom: 1px solid #30363d; display: flex; flex: none; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; font-size: 13px; gap: 20px; height: 44px; padding: 0 24px; }
    nav .brand { color: #e6edf3; font-weight: 600; }
    nav a { color: #58a6ff; text-decoration: none; }
    nav .hint { color: #8b949e; margin-left: auto; }
    .reference { flex: 1; min-height: 0; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">SignalDash</span>
    {{- range .Links}}
    <a href="{{.Href}}">{{.Label}}</a>
    {{- end}}
    <span class="hint">Session commands render on every page attached to the session.</span>
  </nav>
  <div class="reference">
    <elements-api
      apiDescriptionUrl="/openapi.json"
      router="hash"
      layout="sidebar"
      tryItCredentialsPolicy="same-origin"
      darkMode
    />
  </div>
</body>
</html>`))

func docsHandler(metrics bool) http.HandlerFunc {
	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, struct{ Links []docsLink }{docsLinks(metrics)}); err != nil {
		panic(err)
	}
	page := buf.Bytes()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(page); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	}
}
