package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Notifier delivers class alerts to people.
type Notifier interface {
	Notify(ctx context.Context, alert models.ClassAlert) error
}

// LogNotifier writes alerts to the structured log. It is the default when no
// delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, alert models.ClassAlert) error {
	n.logger.Info("class alert",
		zap.String("entry", alert.Entry.ID),
		zap.String("teacher", alert.Entry.TeacherID),
		zap.String("date", alert.Date),
		zap.String("message", alert.Message()),
	)
	return nil
}

// TelegramConfig configures TelegramNotifier.
type TelegramConfig struct {
	Token  string
	ChatID int64
	// URL overrides the Bot API endpoint.
	URL     string
	Timeout time.Duration
}

// TelegramNotifier posts alerts to one Telegram chat.
type TelegramNotifier struct {
	bot  *tele.Bot
	chat *tele.Chat
}

// NewTelegramNotifier builds a notifier without contacting Telegram.
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tele.NewBot(tele.Settings{
		URL:     cfg.URL,
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

// Notify implements Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, alert models.ClassAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Send(n.chat, alert.Message(), &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}
