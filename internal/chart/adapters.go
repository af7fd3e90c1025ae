package chart

import (
	"time"

	"github.com/dgnsrekt/signaldash/internal/signalapi"
)

var tradingViewIntervals = map[signalapi.Interval]string{
	signalapi.Interval1m:  "1",
	signalapi.Interval5m:  "5",
	signalapi.Interval15m: "15",
	signalapi.Interval1h:  "60",
	signalapi.Interval1d:  "D",
}

// TradingViewInterval converts an interval to the widget's resolution string.
func TradingViewInterval(iv signalapi.Interval) string {
	if v, ok := tradingViewIntervals[iv]; ok {
		return v
	}
	return "1"
}

// TradingView embeds the hosted TradingView widget. It loads its own market
// data, so the series candles are not used.
type TradingView struct {
	Preset Preset
}

type tradingViewConfig struct {
	Autosize         bool              `json:"autosize"`
	Symbol           string            `json:"symbol"`
	Interval         string            `json:"interval"`
	Timezone         string            `json:"timezone"`
	Theme            string            `json:"theme"`
	Style            string            `json:"style"`
	Locale           string            `json:"locale"`
	ToolbarBG        string            `json:"toolbar_bg"`
	EnablePublishing bool              `json:"enable_publishing"`
	HideTopToolbar   bool              `json:"hide_top_toolbar"`
	HideLegend       bool              `json:"hide_legend"`
	SaveImage        bool              `json:"save_image"`
	ContainerID      string            `json:"container_id"`
	Studies          []string          `json:"studies,omitempty"`
	Overrides        map[string]string `json:"overrides,omitempty"`
}

func (a *TradingView) Kind() Kind { return KindTradingView }

func (a *TradingView) Config(s Series, container string) (any, error) {
	p := a.Preset
	return tradingViewConfig{
		Autosize:    true,
		Symbol:      p.Exchange + ":" + s.Ticker,
		Interval:    TradingViewInterval(s.Interval),
		Timezone:    p.Timezone,
		Theme:       p.Theme,
		Style:       "1",
		Locale:      p.Locale,
		ToolbarBG:   p.ToolbarBG,
		ContainerID: container,
		Studies:     p.Studies,
		Overrides: map[string]string{
			"mainSeriesProperties.candleStyle.upColor":         p.UpColor,
			"mainSeriesProperties.candleStyle.downColor":       p.DownColor,
			"mainSeriesProperties.candleStyle.borderUpColor":   p.UpColor,
			"mainSeriesProperties.candleStyle.borderDownColor": p.DownColor,
			"mainSeriesProperties.candleStyle.wickUpColor":     p.UpColor,
			"mainSeriesProperties.candleStyle.wickDownColor":   p.DownColor,
		},
	}, nil
}

// chartJSConfig is the subset of the Chart.js config object the dashboard uses.
type chartJSConfig struct {
	Type    string         `json:"type"`
	Data    chartJSData    `json:"data"`
	Options map[string]any `json:"options"`
}

type chartJSData struct {
	Labels   []string         `json:"labels,omitempty"`
	Datasets []chartJSDataset `json:"datasets"`
}

type chartJSDataset struct {
	Label       string  `json:"label"`
	Data        any     `json:"data"`
	BorderColor string  `json:"borderColor,omitempty"`
	Tension     float64 `json:"tension,omitempty"`
	PointRadius *int    `json:"pointRadius,omitempty"`
	Color       any     `json:"color,omitempty"`
}

func baseOptions(timeAxis bool) map[string]any {
	x := map[string]any{"ticks": map[string]any{"maxTicksLimit": 8}}
	if timeAxis {
		x["type"] = "time"
	}
	return map[string]any{
		"responsive":          true,
		"maintainAspectRatio": false,
		"animation":           false,
		"plugins":             map[string]any{"legend": map[string]any{"display": false}},
		"scales":              map[string]any{"x": x},
	}
}

// LineChart plots closing prices with Chart.js.
type LineChart struct {
	Preset Preset
}

func (a *LineChart) Kind() Kind { return KindLine }

func (a *LineChart) Config(s Series, _ string) (any, error) {
	labels := make([]string, 0, len(s.Candles))
	closes := make([]float64, 0, len(s.Candles))
	for _, c := range s.Candles {
		labels = append(labels, c.Time.UTC().Format(time.RFC3339))
		closes = append(closes, c.Close)
	}
	zero := 0
	return chartJSConfig{
		Type: "line",
		Data: chartJSData{
			Labels: labels,
			Datasets: []chartJSDataset{{
				Label:       s.Ticker + " close",
				Data:        closes,
				BorderColor: a.Preset.LineColor,
				Tension:     0.1,
				PointRadius: &zero,
			}},
		},
		Options: baseOptions(false),
	}, nil
}

// FinancialPoint is the chartjs-chart-financial data point.
type FinancialPoint struct {
	X     int64   `json:"x"`
	Open  float64 `json:"o"`
	High  float64 `json:"h"`
	Low   float64 `json:"l"`
	Close float64 `json:"c"`
}

// CandlestickChart plots OHLC bars with the chartjs-chart-financial plugin.
type CandlestickChart struct {
	Preset Preset
}

func (a *CandlestickChart) Kind() Kind { return KindCandlestick }

func (a *CandlestickChart) Config(s Series, _ string) (any, error) {
	points := make([]FinancialPoint, 0, len(s.Candles))
	for _, c := range s.Candles {
		points = append(points, FinancialPoint{
			X:     c.Time.UnixMilli(),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
		})
	}
	return chartJSConfig{
		Type: "candlestick",
		Data: chartJSData{
			Datasets: []chartJSDataset{{
				Label: s.Ticker,
				Data:  points,
				Color: map[string]string{
					"up":        a.Preset.UpColor,
					"down":      a.Preset.DownColor,
					"unchanged": "#aaa",
				},
			}},
		},
		Options: baseOptions(true),
	}, nil
}
