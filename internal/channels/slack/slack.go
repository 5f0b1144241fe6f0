// Package slack is the Slack channel adapter, built on
// github.com/slack-go/slack using Socket Mode so no public HTTP endpoint
// is required.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Channel connects to Slack via Socket Mode.
type Channel struct {
	*channels.Base
	api    *slack.Client
	client *socketmode.Client
	botID  string
	cancel context.CancelFunc
}

// New creates a Slack channel from a bot token and an app-level token
// (required for Socket Mode, xapp-*).
func New(botToken, appToken string, b *bus.Bus, allowlist []string) *Channel {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	client := socketmode.New(api)
	return &Channel{Base: channels.NewBase("slack", b, allowlist), api: api, client: client}
}

// Start begins the Socket Mode event loop.
func (c *Channel) Start(ctx context.Context) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	c.botID = auth.UserID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		for evt := range c.client.Events {
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			outer, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			c.client.Ack(*evt.Request)
			if inner, ok := outer.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				c.handleMessage(inner)
			}
		}
	}()

	go func() {
		if err := c.client.RunContext(runCtx); err != nil {
			slog.Error("slack: socket mode loop exited", "error", err)
		}
	}()
	slog.Info("slack: connected", "bot_user", c.botID)
	return nil
}

func (c *Channel) handleMessage(m *slackevents.MessageEvent) {
	if m.User == c.botID || m.BotID != "" || m.Text == "" {
		return
	}
	c.Publish(bus.InboundEvent{SenderID: m.User, ChatID: m.Channel, Content: m.Text})
}

// Stop cancels the Socket Mode run loop.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send posts one outbound message to a Slack channel.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	_, _, err := c.api.PostMessageContext(ctx, evt.ChatID, slack.MsgOptionText(evt.Content, false))
	return err
}
