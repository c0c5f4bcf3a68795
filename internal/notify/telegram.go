package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type TelegramConfig struct {
	APIURL   string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Telegram posts alerts to a chat through the Bot API sendMessage method.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Telegram{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (*Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, msg Message) Outcome {
	chats := msg.Targets
	if len(chats) == 0 && t.cfg.ChatID != "" {
		chats = []string{t.cfg.ChatID}
	}
	if t.cfg.BotToken == "" || len(chats) == 0 {
		return failed(t.Name(), ErrNotConfigured)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIURL, t.cfg.BotToken)
	var errs []error
	for _, chat := range chats {
		body, err := json.Marshal(map[string]string{
			"chat_id": chat,
			"text":    msg.Subject + "\n\n" + msg.Body,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := post(ctx, t.client, url, "application/json", body, nil); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chat, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return failed(t.Name(), err)
	}
	return sent(t.Name())
}
