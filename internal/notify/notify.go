// Package notify delivers operator alerts.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/store"
)

const telegramBaseURL = "https://api.telegram.org"

// logNotifier only writes alerts to the log.
type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, msg string) {
	logger.Info(ctx, "Notification", "message", msg)
}

// Telegram posts alerts to a chat through the Bot API. Failed deliveries
// are logged and never surface to the caller.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
}

var _ interfaces.Notifier = (*Telegram)(nil)

func NewTelegram(baseURL, token, chatID string) *Telegram {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)
	return &Telegram{client: client, token: token, chatID: chatID}
}

type telegramResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Notify(ctx context.Context, msg string) {
	logger.Info(ctx, "Notification", "message", msg, "channel", "telegram")

	var out telegramResp
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"chat_id": t.chatID, "text": msg}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		logger.Warn(ctx, "Telegram delivery failed", "error", err.Error())
		return
	}
	if resp.IsError() || !out.OK {
		logger.Warn(ctx, "Telegram rejected message", "status", resp.StatusCode(), "description", out.Description)
	}
}

// FromConfig returns a Telegram notifier when enabled, otherwise a
// log-only one.
func FromConfig(cfg *store.Config) interfaces.Notifier {
	if !cfg.Telegram.Enabled {
		return logNotifier{}
	}
	return NewTelegram(telegramBaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}
