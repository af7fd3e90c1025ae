package api

const channelDocsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Patch Channel - SignalDash</title>
  <style>
    body { background: #0d1117; color: #c9d1d9; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; font-size: 14px; line-height: 1.65; margin: 0; }
    nav { background: #161b22; border-bottom: 1px solid #30363d; display: flex; gap: 24px; height: 48px; align-items: center; padding: 0 24px; }
    nav .brand { color: #e6edf3; font-weight: 600; }
    a { color: #58a6ff; text-decoration: none; }
    main { margin: 0 auto; max-width: 900px; padding: 8px 24px 48px; }
    h2 { border-bottom: 1px solid #30363d; color: #e6edf3; padding-bottom: 6px; }
    code, pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 12px; }
    code { padding: 1px 5px; }
    pre { overflow-x: auto; padding: 12px 16px; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
    th { background: #161b22; }
  </style>
</head>
<body>
  <nav><span class="brand">SignalDash</span><a href="/docs">REST API</a><span>Patch Channel</span></nav>
  <main>
    <h2>Overview</h2>
    <p>Every dashboard page is a server session. The server owns the view state and streams
    <em>patches</em> to the browser. The browser reports user input back as <em>client events</em>.
    Open <code>GET /</code> to create a session, or <code>GET /?session=ID</code> to attach to one.</p>

    <h2>Transports</h2>
    <table>
      <tr><th>Endpoint</th><th>Direction</th><th>Notes</th></tr>
      <tr><td><code>GET /ws?session=ID</code></td><td>both</td><td>Text frames. Patches down, client events up.</td></tr>
      <tr><td><code>GET /events?session=ID</code></td><td>down</td><td>Server-sent events named <code>patch</code>. Send events through the REST API.</td></tr>
    </table>
    <p>The first message on either transport replays the whole page. Patches carry an increasing
    <code>seq</code>; a client ignores any patch whose seq is not above the last one applied.</p>

    <h2>Patch</h2>
<pre>{"seq": 12, "ops": [
  {"op": "text",   "id": "signal",  "value": "🟢 BUY"},
  {"op": "class",  "id": "signal",  "value": "badge buy"},
  {"op": "html",   "id": "newsList", "value": "&lt;div class=\"news-item\"&gt;...&lt;/div&gt;"},
  {"op": "hidden", "id": "logo",    "hidden": true},
  {"op": "attr",   "id": "logo",    "key": "src", "value": "https://..."},
  {"op": "items",  "id": "logicList", "items": ["RSI oversold"]},
  {"op": "chart",  "id": "tvchart", "chart": {"kind": "tradingview", "handle_id": 3, "container": "tvchart", "config": {}}}
]}</pre>
    <p>An <code>attr</code> op with an empty value removes the attribute. A <code>chart</code> op without a
    chart tears the widget down.</p>

    <h2>Client events</h2>
<pre>{"type": "submit",       "ticker": "AAPL"}
{"type": "interval",     "interval": "15m"}
{"type": "symbolChange", "symbol": "NASDAQ:MSFT"}
{"type": "backtest",     "ticker": "AAPL", "interval": "1d", "start": "2025-01-01", "end": "2025-03-31"}</pre>
    <p>Only symbol changes made by the user inside the chart widget are reported as
    <code>symbolChange</code>.</p>
  </main>
</body>
</html>`
