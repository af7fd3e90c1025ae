package view

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/signaldash/internal/signalapi"
)

// Placeholders rendered for absent fields.
const (
	PlaceholderNA   = "N/A"
	PlaceholderNone = "None"

	MsgSignalStatus    = "Ticker not found or backend error"
	MsgSignalDecode    = "Malformed response from backend"
	MsgSignalTransport = "Backend unreachable"

	MsgNewsLoading = "Loading news..."
	MsgNewsEmpty   = "No news found."
	MsgNewsError   = "Error loading news."

	MsgBacktestMissing = "Please fill in all fields."
	MsgBacktestInvalid = "Invalid backtest parameters."
	MsgBacktestRunning = "Running backtest..."
	MsgBacktestFailed  = "Backtest failed"
	MsgBacktestError   = "Error running backtest."
	MsgBacktestNoTrade = "No signals generated in this period."
)

const (
	maxPatternCards = 5
	maxSummaryRunes = 180
	timeAgoLayout   = "Jan 2, 2006 3:04 PM"
)

// Badge is the rendered signal badge.
type Badge struct {
	Text  string
	Class string
}

// BadgeFor maps a backend signal to its badge. Everything other than BUY and
// SELL is the neutral WAIT badge.
func BadgeFor(signal string) Badge {
	switch strings.ToUpper(strings.TrimSpace(signal)) {
	case "BUY":
		return Badge{Text: "🟢 BUY", Class: "badge buy"}
	case "SELL":
		return Badge{Text: "🔴 SELL", Class: "badge sell"}
	default:
		return Badge{Text: "⚪️ WAIT", Class: "badge wait"}
	}
}

// FormatTimeAgo renders how long ago ts was relative to now.
func FormatTimeAgo(ts, now time.Time, loc *time.Location) string {
	if ts.IsZero() {
		return PlaceholderNA
	}
	diff := now.Sub(ts)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff/time.Minute))
	}
	if loc == nil {
		loc = time.Local
	}
	return ts.In(loc).Format(timeAgoLayout)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64, prefix, suffix string) string {
	if v == nil {
		return PlaceholderNA
	}
	return prefix + formatNumber(*v) + suffix
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func directionColor(direction string) string {
	switch strings.ToLower(direction) {
	case "bullish":
		return "#00c853"
	case "bearish":
		return "#d32f2f"
	default:
		return "#aaa"
	}
}

var fragments = template.Must(template.New("fragments").Funcs(template.FuncMap{
	"num":   func(v *float64) string { return formatOptional(v, "", "") },
	"color": directionColor,
	"plain": formatNumber,
}).Parse(`
{{define "patterns"}}{{range .}}<div class="pattern-card" style="color:{{color .Direction}}">{{.Name}} <span class="pattern-dir">[{{.Direction}}]</span><br><span class="pattern-levels">Entry: <b>{{num .Entry}}</b> SL: <b>{{num .StopLoss}}</b> TP: <b>{{num .TakeProfit}}</b></span></div>{{end}}{{end}}
{{define "news"}}{{range .}}<div class="news-item"><a href="{{.URL}}" class="news-headline" target="_blank" rel="noopener noreferrer">{{.Headline}}</a><div class="news-summary">{{.Summary}}</div><div class="news-meta"><span>{{.Source}}</span><span>{{.When}}</span></div></div>{{end}}{{end}}
{{define "placeholder"}}<div class="{{.Class}}">{{.Text}}</div>{{end}}
{{define "backtest"}}<div class="backtest-metrics"><div class="backtest-metric">Total Trades: {{plain .Metrics.TotalTrades}}</div><div class="backtest-metric">Win Rate: {{plain .Metrics.WinRate}}%</div><div class="backtest-metric">Avg Return: {{plain .Metrics.AvgReturn}}%</div><div class="backtest-metric">Max Drawdown: {{plain .Metrics.MaxDrawdown}}%</div></div>{{if .Signals}}<table class="backtest-signals-table"><thead><tr><th>Timestamp</th><th>Signal</th><th>Price</th></tr></thead><tbody>{{range .Signals}}<tr><td>{{.Timestamp}}</td><td>{{.Signal}}</td><td>{{plain .Price}}</td></tr>{{end}}</tbody></table>{{else}}<div class="backtest-placeholder">` + MsgBacktestNoTrade + `</div>{{end}}{{end}}
`))

func execFragment(name string, data any) string {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Warn("view fragment render failed", "fragment", name, "error", err)
		return ""
	}
	return buf.String()
}

func placeholderHTML(class, text string) string {
	return execFragment("placeholder", struct{ Class, Text string }{class, text})
}

// signalFieldOps renders every signal field from resp. Chart ops are added by the caller.
func signalFieldOps(ticker string, resp signalapi.SignalResponse, now time.Time, loc *time.Location) []Op {
	badge := BadgeFor(resp.Signal)
	heading := orPlaceholder(signalapi.NormalizeTicker(resp.Ticker), ticker)

	ts := resp.Timestamp.Raw
	if resp.Timestamp.Valid() {
		ts = resp.Timestamp.Time.UTC().Format(time.RFC3339Nano)
	}

	ops := []Op{
		SetText(ElemError, ""),
		SetText(ElemStatus, ""),
		SetText(ElemTicker, heading),
		SetText(ElemConfidence, formatOptional(resp.Confidence, "", "%")),
		SetText(ElemPrice, formatOptional(resp.Price, "$", "")),
		SetText(ElemTimestamp, FormatTimeAgo(resp.Timestamp.Time, now, loc)),
		SetAttr(ElemTimestamp, AttrTimestamp, ts),
		SetText(ElemEntrySignal, orPlaceholder(resp.EntrySignal, PlaceholderNA)),
		SetText(ElemSignal, badge.Text),
		SetClass(ElemSignal, badge.Class),
		SetItems(ElemLogicList, nonNil(resp.Logic)),
	}

	stack := orPlaceholder(strings.Join(resp.PatternStack, ", "), PlaceholderNone)
	if n := len(resp.CandlestickPatterns); n > 0 {
		cards := resp.CandlestickPatterns[max(0, n-maxPatternCards):]
		ops = append(ops, SetHTML(ElemPatternStack, execFragment("patterns", cards)))
	} else {
		ops = append(ops, SetText(ElemPatternStack, stack))
	}
	return ops
}

// errorStateOps clears every signal field and shows msg.
func errorStateOps(msg string) []Op {
	return []Op{
		SetText(ElemError, msg),
		SetText(ElemStatus, ""),
		SetText(ElemTicker, ""),
		SetText(ElemConfidence, ""),
		SetText(ElemPrice, ""),
		SetText(ElemTimestamp, ""),
		SetAttr(ElemTimestamp, AttrTimestamp, ""),
		SetText(ElemEntrySignal, ""),
		SetText(ElemPatternStack, ""),
		SetText(ElemSignal, ""),
		SetClass(ElemSignal, "badge"),
		SetItems(ElemLogicList, []string{}),
		SetChart(ElemChart, nil),
		SetHidden(ElemChart, true),
		SetHidden(ElemLogo, true),
		SetAttr(ElemLogo, "src", ""),
	}
}

// signalErrorMessage picks the user-facing text for a failed /run call.
func signalErrorMessage(err error) string {
	switch signalapi.ErrorCode(err) {
	case signalapi.CodeHTTPStatus:
		return MsgSignalStatus
	case signalapi.CodeDecode:
		return MsgSignalDecode
	default:
		return MsgSignalTransport
	}
}

type newsItem struct {
	URL      string
	Headline string
	Summary  string
	Source   string
	When     string
}

func newsHTML(articles []signalapi.NewsArticle, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	items := make([]newsItem, 0, len(articles))
	for _, a := range articles {
		it := newsItem{
			URL:      a.URL,
			Headline: a.Headline,
			Summary:  truncateRunes(a.Summary, maxSummaryRunes),
			Source:   a.Source,
		}
		if a.Datetime != nil && *a.Datetime > 0 {
			it.When = time.Unix(int64(*a.Datetime), 0).In(loc).Format(timeAgoLayout)
		}
		items = append(items, it)
	}
	return execFragment("news", items)
}

func backtestHTML(resp signalapi.BacktestResponse) string {
	metrics := signalapi.BacktestMetrics{}
	if resp.Metrics != nil {
		metrics = *resp.Metrics
	}
	return execFragment("backtest", struct {
		Metrics signalapi.BacktestMetrics
		Signals []signalapi.BacktestSignal
	}{metrics, resp.Signals})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
