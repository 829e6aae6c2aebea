// ABOUTME: Telegram channel adapter built on the telegram-bot-api client
// ABOUTME: Handles outbound delivery with retries and inbound update decoding

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// InboundMessage is a channel message normalized for the routing core.
type InboundMessage struct {
	UpdateID  int64
	ChannelID string
	UserID    string
	UserName  string
	Text      string
}

// TelegramSender delivers text to Telegram chats and decodes webhook updates.
type TelegramSender struct {
	api      *tgbotapi.BotAPI
	logger   *slog.Logger
	attempts int
}

// NewTelegramSender authorizes against the Bot API with the given token.
func NewTelegramSender(token string, debug bool, logger *slog.Logger) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot api: %w", err)
	}
	api.Debug = debug
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return &TelegramSender{api: api, logger: logger.With("component", "telegram"), attempts: 3}, nil
}

// SendToUser sends text to the chat identified by recipient. Transient API
// failures are retried with backoff; the final outcome is reported as a bool
// so callers can fall back to queue metadata when delivery is impossible.
func (t *TelegramSender) SendToUser(ctx context.Context, channelID, recipient, text string) bool {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		t.logger.Error("invalid telegram chat id", "recipient", recipient, "error", err)
		return false
	}

	msg := tgbotapi.NewMessage(chatID, text)
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if _, err = t.api.Send(msg); err == nil {
			return true
		}
		t.logger.Warn("telegram send failed",
			"chat_id", chatID,
			"attempt", attempt,
			"error", err)
		if attempt == t.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return false
}

// DecodeUpdate parses a webhook request body into an InboundMessage. Updates
// that carry no text message (edits, callbacks, joins) return nil.
func (t *TelegramSender) DecodeUpdate(body io.Reader) (*InboundMessage, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		return nil, fmt.Errorf("decoding telegram update: %w", err)
	}
	return normalizeUpdate(update), nil
}

// Listen long-polls the Bot API and hands each text message to handle. It
// returns when ctx is cancelled. Used when no webhook URL is configured.
func (t *TelegramSender) Listen(ctx context.Context, handle func(context.Context, *InboundMessage)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := t.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if in := normalizeUpdate(update); in != nil {
				handle(ctx, in)
			}
		}
	}
}

func normalizeUpdate(update tgbotapi.Update) *InboundMessage {
	if update.Message == nil || update.Message.Text == "" {
		return nil
	}
	msg := update.Message
	return &InboundMessage{
		UpdateID:  int64(update.UpdateID),
		ChannelID: strconv.FormatInt(msg.Chat.ID, 10),
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		UserName:  msg.From.UserName,
		Text:      msg.Text,
	}
}
