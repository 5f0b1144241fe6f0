// Package qq is the QQ channel adapter, built on
// github.com/tencent-connect/botgo, the Tencent QQ bot SDK.
package qq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/tencent-connect/botgo"
	"github.com/tencent-connect/botgo/dto"
	"github.com/tencent-connect/botgo/event"
	"github.com/tencent-connect/botgo/openapi"
	"github.com/tencent-connect/botgo/token"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Channel connects to QQ's bot gateway over WebSocket.
type Channel struct {
	*channels.Base
	api    openapi.OpenAPI
	appID  string
	tokSrc oauth2.TokenSource
}

// New creates a QQ channel from an app id / token pair.
func New(appID, appToken string, b *bus.Bus, allowlist []string) *Channel {
	tokSrc := token.NewQQBotTokenSource(&token.QQBotCredentials{AppID: appID, AppSecret: appToken})
	return &Channel{
		Base:   channels.NewBase("qq", b, allowlist),
		api:    botgo.NewOpenAPI(appID, tokSrc).WithTimeout(10 * time.Second),
		appID:  appID,
		tokSrc: tokSrc,
	}
}

// Start fetches the gateway endpoint and begins the WebSocket event loop.
func (c *Channel) Start(ctx context.Context) error {
	wsInfo, err := c.api.WS(ctx, nil, "")
	if err != nil {
		return fmt.Errorf("qq: fetch gateway: %w", err)
	}
	intent := event.RegisterHandlers(event.ATMessageEventHandler(c.onMessage))
	go func() {
		if err := botgo.NewSessionManager().Start(wsInfo, c.tokSrc, &intent); err != nil {
			slog.Error("qq: session manager exited", "error", err)
		}
	}()
	return nil
}

func (c *Channel) onMessage(evt *dto.WSPayload, data *dto.WSATMessageData) error {
	if data.Content == "" {
		return nil
	}
	c.Publish(bus.InboundEvent{
		SenderID: data.Author.ID,
		ChatID:   data.ChannelID,
		Content:  data.Content,
	})
	return nil
}

// Stop is a no-op: botgo's session manager owns the WebSocket lifecycle and
// reconnection; the process-level shutdown tears the connection down.
func (c *Channel) Stop(ctx context.Context) error {
	return nil
}

// Send posts one outbound message to a QQ channel.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	_, err := c.api.PostMessage(ctx, evt.ChatID, &dto.MessageToCreate{Content: evt.Content})
	if err != nil {
		slog.Error("qq: send failed", "error", err)
	}
	return err
}
