package delivery

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/adapter"
)

// Ensure TelegramChannel implements adapter.DeliveryChannel
var _ adapter.DeliveryChannel = (*TelegramChannel)(nil)

// TelegramChannel delivers outreach messages over the Telegram Bot API. The
// lead profile ref is expected to carry the numeric chat id.
type TelegramChannel struct {
	bot *tgbotapi.BotAPI
	log *zerolog.Logger
}

func NewTelegramChannel(token string, logger *zerolog.Logger) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	l := logger.With().Str("component", "delivery_telegram").Logger()
	return &TelegramChannel{bot: bot, log: &l}, nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg adapter.OutreachMessage) error {
	chatID, err := strconv.ParseInt(msg.LeadProfileRef, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: lead ref %q is not a chat id", domain.ErrInvalidArgument, msg.LeadProfileRef)
	}

	// tgbotapi has no context-aware call; run it in a goroutine so the
	// dispatch deadline still cuts the wait short.
	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(tgbotapi.NewMessage(chatID, msg.Content))
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
			return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		}
	}
	return nil
}
