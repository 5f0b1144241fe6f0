// Package whatsapp is the WhatsApp channel adapter, built on the native
// multi-device client go.mau.fi/whatsmeow.
package whatsapp

import (
	"context"
	"fmt"
	"strings"

	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"go.mau.fi/whatsmeow"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Channel connects to WhatsApp via a linked-device session stored in dbPath.
type Channel struct {
	*channels.Base
	client *whatsmeow.Client
}

// New opens (or creates) the whatsmeow device store at dbPath. The device
// must already be paired; this adapter never renders a pairing QR code
// itself.
func New(ctx context.Context, dbPath string, b *bus.Bus, allowlist []string) (*Channel, error) {
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: get device: %w", err)
	}
	client := whatsmeow.NewClient(device, waLog.Noop)
	c := &Channel{Base: channels.NewBase("whatsapp", b, allowlist), client: client}
	client.AddEventHandler(c.handleEvent)
	return c, nil
}

// Start connects the client; the device must already carry a paired session.
func (c *Channel) Start(ctx context.Context) error {
	if c.client.Store.ID == nil {
		return fmt.Errorf("whatsapp: device not paired")
	}
	return c.client.Connect()
}

// Stop disconnects the client.
func (c *Channel) Stop(ctx context.Context) error {
	c.client.Disconnect()
	return nil
}

func (c *Channel) handleEvent(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok || msg.Info.IsFromMe || msg.Info.IsGroup {
		return
	}
	content := ""
	if msg.Message.Conversation != nil {
		content = *msg.Message.Conversation
	} else if msg.Message.ExtendedTextMessage != nil && msg.Message.ExtendedTextMessage.Text != nil {
		content = *msg.Message.ExtendedTextMessage.Text
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	c.Publish(bus.InboundEvent{
		SenderID:  msg.Info.Sender.User,
		ChatID:    msg.Info.Chat.String(),
		Content:   content,
		Timestamp: msg.Info.Timestamp,
	})
}

// Send delivers one outbound text message.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	recipient, err := types.ParseJID(evt.ChatID)
	if err != nil {
		return fmt.Errorf("whatsapp: invalid chat id %q: %w", evt.ChatID, err)
	}
	content := evt.Content
	_, err = c.client.SendMessage(ctx, recipient, &waProto.Message{Conversation: &content})
	return err
}
