// Package notify delivers alerts to external channels.
package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// DefaultTelegramURL is the Telegram Bot API endpoint.
const DefaultTelegramURL = "https://api.telegram.org"

// Sink delivers one formatted alert.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, text string) error
}

// TelegramConfig configures the Telegram sink. Token and ChatID come from the environment.
type TelegramConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,default=https://api.telegram.org"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"title=Request timeout"`
	Token   string        `yaml:"-" json:"-"`
	ChatID  string        `yaml:"-" json:"-"`
}

// TelegramSink sends alerts through the Bot API sendMessage method.
type TelegramSink struct {
	client *resty.Client
	token  string
	chatID string
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewTelegramSink creates a Telegram sink. It fails when the token or chat id is missing.
func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if cfg.Token == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "telegram bot token is required")
	}

	if cfg.ChatID == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "telegram chat id is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &TelegramSink{
		client: client,
		token:  cfg.Token,
		chatID: cfg.ChatID,
	}, nil
}

func (t *TelegramSink) Name() string {
	return "telegram"
}

func (t *TelegramSink) Deliver(ctx context.Context, text string) error {
	var result telegramResponse

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(telegramMessage{ChatID: t.chatID, Text: text}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return errors.Wrap(errors.ErrCodeDeliveryFailed, "telegram request failed", err)
	}

	if resp.IsError() || !result.OK {
		return errors.Newf(errors.ErrCodeDeliveryFailed, "telegram rejected message: status %d: %s", resp.StatusCode(), result.Description)
	}

	return nil
}

// LogSink writes alerts to the log. It is used when no chat sink is configured.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Named("alerts")}
}

func (l *LogSink) Name() string {
	return "log"
}

func (l *LogSink) Deliver(_ context.Context, text string) error {
	l.log.Info("Alert", zap.String("text", text))

	return nil
}
