// Package telegram is the Telegram Bot API channel adapter, built on
// github.com/mymmrac/telego with long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.Base
	bot        *telego.Bot
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel from a bot token.
func New(token string, b *bus.Bus, allowlist []string) (*Channel, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &Channel{Base: channels.NewBase("telegram", b, allowlist), bot: bot}, nil
}

// Start begins long polling for updates and forwards text messages inbound.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: start long polling: %w", err)
	}

	go func() {
		defer close(c.pollDone)
		for update := range updates {
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			msg := update.Message
			c.Publish(bus.InboundEvent{
				SenderID:  strconv.FormatInt(msg.From.ID, 10),
				ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
				Content:   msg.Text,
				Timestamp: time.Unix(int64(msg.Date), 0),
			})
		}
	}()
	slog.Info("telegram: connected", "username", c.bot.Username())
	return nil
}

// Stop cancels long polling and waits for the receive loop to exit.
func (c *Channel) Stop(ctx context.Context) error {
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-ctx.Done():
		}
	}
	return nil
}

// Send delivers one outbound message as a Telegram sendMessage call.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	chatID, err := strconv.ParseInt(evt.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", evt.ChatID, err)
	}
	_, err = c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   evt.Content,
	})
	return err
}
