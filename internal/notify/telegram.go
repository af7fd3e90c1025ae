package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink sends alerts to one Telegram chat.
type TelegramSink struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// TelegramOptions configures a TelegramSink.
type TelegramOptions struct {
	Token  string
	ChatID string
	// Endpoint overrides tgbotapi.APIEndpoint; HTTPClient overrides the bot's client.
	Endpoint       string
	HTTPClient     tgbotapi.HTTPClient
	MaxRetries     int
	RetryDelayBase time.Duration
}

// NewTelegramSink validates the chat id and logs the bot in.
func NewTelegramSink(opts TelegramOptions) (*TelegramSink, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(opts.ChatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	var bot *tgbotapi.BotAPI
	if opts.HTTPClient != nil {
		bot, err = tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, opts.HTTPClient)
	} else {
		bot, err = tgbotapi.NewBotAPIWithAPIEndpoint(opts.Token, endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	s := &TelegramSink{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     opts.MaxRetries,
		retryDelayBase: opts.RetryDelayBase,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 3
	}
	if s.retryDelayBase <= 0 {
		s.retryDelayBase = time.Second
	}
	return s, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

// Notify sends a MarkdownV2 message with linear-backoff retry.
func (s *TelegramSink) Notify(ctx context.Context, a Alert) error {
	msg := tgbotapi.NewMessage(s.chatID, formatTelegram(a))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		if _, err := s.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", s.maxRetries, lastErr)
}

func formatTelegram(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* for `%s`\n", escapeMarkdownV2(a.Badge()), escapeMarkdownV2(a.Ticker))
	fmt.Fprintf(&b, "Confidence: %s\n", escapeMarkdownV2(a.confidenceText()))
	for _, line := range a.Logic {
		b.WriteString(escapeMarkdownV2(line))
		b.WriteByte('\n')
	}
	if a.Link != "" {
		fmt.Fprintf(&b, "[Open dashboard](%s)", escapeMarkdownV2URL(a.Link))
	}
	return strings.TrimRight(b.String(), "\n")
}

var markdownV2Special = []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(s string) string {
	for _, c := range markdownV2Special {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}

// escapeMarkdownV2URL escapes the characters MarkdownV2 reserves inside link targets.
func escapeMarkdownV2URL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, ")", `\)`)
}
