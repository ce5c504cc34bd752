package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram posts the message to a chat or channel. Channel may be a numeric
// chat id or an @channel username.
type Telegram struct {
	Token   string
	Channel string

	// Endpoint overrides tgbotapi.APIEndpoint.
	Endpoint   string
	HTTPClient *http.Client
}

func (t *Telegram) Name() string { return "telegram" }

// Notify creates the bot per call; the report is sent once per run.
func (t *Telegram) Notify(_ context.Context, message string) error {
	if t.Token == "" || t.Channel == "" {
		return ErrNotConfigured
	}
	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	hc := t.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.Token, endpoint, hc)
	if err != nil {
		return fmt.Errorf("telegram: bot init: %w", err)
	}

	var m tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(t.Channel, 10, 64); err == nil {
		m = tgbotapi.NewMessage(id, message)
	} else {
		m = tgbotapi.NewMessageToChannel(t.Channel, message)
	}
	if _, err := bot.Send(m); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}
