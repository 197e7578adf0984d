// Package notify sends operator alerts for suspicious price events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/server/events"
)

var (
	// ErrTokenRequired is returned when no bot token is configured.
	ErrTokenRequired = errors.New("telegram bot token is required")
	// ErrChatRequired is returned when no chat id is configured.
	ErrChatRequired = errors.New("telegram chat id is required")
)

// Sender is the part of tgbotapi.BotAPI used for alerts.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	BotToken      string
	ChatID        int64
	MinConfidence int
	// Cooldown suppresses repeated alerts for the same asset.
	Cooldown time.Duration
	// Timeout bounds every Bot API request; tgbotapi calls take no context.
	Timeout time.Duration
	// APIEndpoint overrides tgbotapi.APIEndpoint.
	APIEndpoint string
}

// DefaultTimeout bounds Bot API requests when TelegramConfig.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Telegram is an events.Sink that alerts on anomalous or low-confidence events.
type Telegram struct {
	sender Sender
	cfg    TelegramConfig
	logger *logging.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewTelegram creates a notifier backed by the Telegram bot API.
func NewTelegram(cfg TelegramConfig, logger *logging.Logger) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, ErrTokenRequired
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, cfg.APIEndpoint, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramWithSender(bot, cfg, logger)
}

// NewTelegramWithSender creates a notifier using the given sender.
func NewTelegramWithSender(sender Sender, cfg TelegramConfig, logger *logging.Logger) (*Telegram, error) {
	if cfg.ChatID == 0 {
		return nil, ErrChatRequired
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Telegram{
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Name implements events.Sink.
func (t *Telegram) Name() string {
	return "telegram"
}

// ShouldAlert reports whether the event warrants an alert.
func (t *Telegram) ShouldAlert(event events.PriceEvent) bool {
	return event.Anomalous() || event.LowTrust || event.Confidence < t.cfg.MinConfidence
}

// Publish sends an alert for the event when it qualifies and the asset is not cooling down.
func (t *Telegram) Publish(ctx context.Context, event events.PriceEvent) error {
	if !t.ShouldAlert(event) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	if last, ok := t.lastSent[event.Asset]; ok && t.cfg.Cooldown > 0 && t.now().Sub(last) < t.cfg.Cooldown {
		t.mu.Unlock()
		t.logger.Debug("Alert suppressed by cooldown", "asset", event.Asset)
		return nil
	}
	t.lastSent[event.Asset] = t.now()
	t.mu.Unlock()

	msg := tgbotapi.NewMessage(t.cfg.ChatID, FormatAlert(event))
	if _, err := t.sender.Send(msg); err != nil {
		t.mu.Lock()
		delete(t.lastSent, event.Asset)
		t.mu.Unlock()
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatAlert renders the alert text.
func FormatAlert(event events.PriceEvent) string {
	var b strings.Builder
	switch {
	case event.Anomalous():
		fmt.Fprintf(&b, "⚠️ %s anomaly: %.6g\n", event.Asset, event.Price)
		fmt.Fprintf(&b, "Deviation %.2f%% from average %.6g\n", event.DeviationPercent, event.RecentAverage)
	default:
		fmt.Fprintf(&b, "⚠️ %s low confidence: %.6g\n", event.Asset, event.Price)
	}
	fmt.Fprintf(&b, "Confidence %d, spread %.2f%%, sources %d/%d",
		event.Confidence, event.SpreadPercent, event.SuccessfulSources, event.TotalSources)
	if len(event.Failures) > 0 {
		names := make([]string, 0, len(event.Failures))
		for name := range event.Failures {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "\nFailed: %s", strings.Join(names, ", "))
	}
	return b.String()
}
