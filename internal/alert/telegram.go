package alert

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"TickWatch/internal/domain/models"
)

func init() {
	Register("telegram", func(cfg ChannelConfig) (Channel, error) {
		token := cfg.Options["token"]
		if token == "" {
			return nil, fmt.Errorf("telegram channel: token is required")
		}
		chatID, err := strconv.ParseInt(cfg.Options["chat_id"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: bad chat_id: %w", err)
		}
		bot, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		return &TelegramChannel{bot: bot, chatID: chatID}, nil
	})
}

// TelegramChannel sends alerts to a Telegram chat via the bot API.
type TelegramChannel struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, s models.Signal) error {
	text := fmt.Sprintf("*%s* %s\n%s", s.Kind, s.Symbol, s.Message)
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
