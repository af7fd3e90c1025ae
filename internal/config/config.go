// Package config loads signaldash settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/signaldash/internal/chart"
	"github.com/dgnsrekt/signaldash/internal/signalapi"
)

// Config holds all configuration for the dashboard server.
type Config struct {
	// HTTP server
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
	PublicURL        string

	// Signal backend
	SignalAPIBase  string
	RequestTimeout time.Duration

	// View
	ChartKind       chart.Kind
	ChartConfig     string
	DefaultTicker   string
	DefaultInterval signalapi.Interval
	DisplayTimezone string

	// Logging
	LogLevel string
	LogFile  string

	// Sessions and scheduling
	SessionIdleTTL time.Duration
	RefreshSpec    string
	SweepSpec      string

	// Snapshots
	SnapshotDir    string
	CDPURL         string
	CaptureTimeout time.Duration
	CaptureWidth   int
	CaptureHeight  int

	// Alerts
	AlertsEnabled  bool
	AlertCooldown  time.Duration
	NTFYEndpoint   string
	AlertJournal   string
	TelegramToken  string
	TelegramChatID string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:         getEnvOrDefault("SIGNALDASH_BIND_ADDR", "127.0.0.1:8080"),
		PortCandidates:   getEnvListOrDefault("SIGNALDASH_PORT_CANDIDATES", []string{"127.0.0.1:8081", "127.0.0.1:8082", "127.0.0.1:8083"}),
		PortAutoFallback: getEnvBoolOrDefault("SIGNALDASH_PORT_AUTO_FALLBACK", true),
		PublicURL:        getEnvOrDefault("SIGNALDASH_PUBLIC_URL", ""),
		SignalAPIBase:    getEnvOrDefault("SIGNAL_API_BASE", "http://127.0.0.1:5000"),
		RequestTimeout:   getEnvDurationOrDefault("SIGNAL_API_TIMEOUT", 15*time.Second),
		ChartKind:        chart.Kind(strings.ToLower(getEnvOrDefault("CHART_KIND", string(chart.KindTradingView)))),
		ChartConfig:      getEnvOrDefault("CHART_CONFIG", ""),
		DefaultTicker:    signalapi.NormalizeTicker(getEnvOrDefault("DEFAULT_TICKER", "AAPL")),
		DisplayTimezone:  getEnvOrDefault("DISPLAY_TIMEZONE", "Local"),
		LogLevel:         strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("LOG_FILE", "logs/signaldash.log"),
		SessionIdleTTL:   getEnvDurationOrDefault("SESSION_IDLE_TTL", 30*time.Minute),
		RefreshSpec:      getEnvOrDefault("TIMESTAMP_REFRESH_SPEC", "@every 60s"),
		SweepSpec:        getEnvOrDefault("SESSION_SWEEP_SPEC", "@every 5m"),
		SnapshotDir:      getEnvOrDefault("SNAPSHOT_DIR", "./snapshots"),
		CDPURL:           getEnvOrDefault("CHROMIUM_CDP_URL", ""),
		CaptureTimeout:   getEnvDurationOrDefault("CAPTURE_TIMEOUT", 45*time.Second),
		CaptureWidth:     getEnvIntOrDefault("CAPTURE_WIDTH", 1440),
		CaptureHeight:    getEnvIntOrDefault("CAPTURE_HEIGHT", 900),
		AlertsEnabled:    getEnvBoolOrDefault("ALERTS_ENABLED", false),
		AlertCooldown:    getEnvDurationOrDefault("ALERT_COOLDOWN", 5*time.Minute),
		NTFYEndpoint:     getEnvOrDefault("NTFY_ENDPOINT", ""),
		AlertJournal:     getEnvOrDefault("ALERT_JOURNAL_DIR", ""),
		TelegramToken:    getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvOrDefault("TELEGRAM_CHAT_ID", ""),
	}

	interval, err := signalapi.ParseInterval(getEnvOrDefault("DEFAULT_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("config: DEFAULT_INTERVAL: %w", err)
	}
	cfg.DefaultInterval = interval

	if cfg.DefaultTicker == "" {
		cfg.DefaultTicker = "AAPL"
	}
	if cfg.RequestTimeout < time.Second {
		cfg.RequestTimeout = time.Second
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return cfg, nil
}

// Location resolves DisplayTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" || strings.EqualFold(c.DisplayTimezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: DISPLAY_TIMEZONE: %w", err)
	}
	return loc, nil
}

// BaseURL is the externally reachable URL of the server listening on addr.
// SIGNALDASH_PUBLIC_URL wins when set.
func (c *Config) BaseURL(addr string) string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://" + addr
}

// AlertsConfigured reports whether any alert sink is set up.
func (c *Config) AlertsConfigured() bool {
	return c.AlertsEnabled && (c.NTFYEndpoint != "" || c.AlertJournal != "" || (c.TelegramToken != "" && c.TelegramChatID != ""))
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
