// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"

	"pastoral_care_worker/internal/domain/notification"
)

// Sender is the part of *telebot.Bot the gateway uses.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Gateway delivers notifications as Telegram direct messages. The address
// is the recipient's numeric chat id.
type Gateway struct {
	bot Sender
}

func NewGateway(bot Sender) *Gateway {
	return &Gateway{bot: bot}
}

func (g *Gateway) Channel() notification.Channel {
	return notification.ChannelTelegram
}

func (g *Gateway) Deliver(ctx context.Context, address, text string) error {
	chatID, err := parseChatID(address)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := g.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// parseChatID accepts digits with an optional '-' for group chats. A leading
// '+' means a phone number was passed and is rejected.
func parseChatID(address string) (int64, error) {
	digits := strings.TrimPrefix(address, "-")
	if digits == "" {
		return 0, fmt.Errorf("invalid Telegram chat id %q", address)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid Telegram chat id %q", address)
		}
	}
	id, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Telegram chat id %q: %w", address, err)
	}
	return id, nil
}
