// Package feishu is the Feishu/Lark channel adapter, built on the vendor
// SDK github.com/larksuite/oapi-sdk-go/v3.
package feishu

import (
	"context"
	"encoding/json"
	"log/slog"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Channel connects to Feishu/Lark over the long-lived WebSocket event
// stream rather than a public webhook.
type Channel struct {
	*channels.Base
	api    *lark.Client
	ws     *larkws.Client
	cancel context.CancelFunc
}

// New creates a Feishu channel from an app id / secret pair.
func New(appID, appSecret string, b *bus.Bus, allowlist []string) *Channel {
	c := &Channel{Base: channels.NewBase("feishu", b, allowlist)}
	c.api = lark.NewClient(appID, appSecret)
	dispatcher := larkevent.NewEventDispatcher("", "").OnP2MessageReceiveV1(c.onMessage)
	c.ws = larkws.NewClient(appID, appSecret, larkws.WithEventHandler(dispatcher))
	return c
}

func (c *Channel) onMessage(ctx context.Context, evt *larkim.P2MessageReceiveV1) error {
	if evt.Event == nil || evt.Event.Sender == nil || evt.Event.Message == nil {
		return nil
	}
	content := ""
	if evt.Event.Message.Content != nil {
		content = extractText(*evt.Event.Message.Content)
	}
	if content == "" {
		return nil
	}
	c.Publish(bus.InboundEvent{
		SenderID: *evt.Event.Sender.SenderId.OpenId,
		ChatID:   *evt.Event.Message.ChatId,
		Content:  content,
	})
	return nil
}

// Start opens the WebSocket event stream.
func (c *Channel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go func() {
		if err := c.ws.Start(runCtx); err != nil {
			slog.Error("feishu: ws stream exited", "error", err)
		}
	}()
	return nil
}

// Stop cancels the WebSocket event stream.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send posts one outbound text message to a chat id.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	payload, err := json.Marshal(map[string]string{"text": evt.Content})
	if err != nil {
		return err
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(evt.ChatID).
			MsgType("text").
			Content(string(payload)).
			Build()).
		Build()
	_, err = c.api.Im.Message.Create(ctx, req)
	return err
}

// extractText pulls the "text" field out of a message's JSON content
// (Feishu delivers text messages as {"text":"..."}), falling back to the
// raw string for non-text payloads.
func extractText(raw string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Text != "" {
		return parsed.Text
	}
	return raw
}
