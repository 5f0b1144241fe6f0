// Package discord is the Discord channel adapter, built on
// github.com/bwmarrin/discordgo.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Channel connects to Discord via the bot gateway.
type Channel struct {
	*channels.Base
	session *discordgo.Session
	botID   string
}

// New creates a Discord channel from a bot token.
func New(token string, b *bus.Bus, allowlist []string) (*Channel, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	return &Channel{Base: channels.NewBase("discord", b, allowlist), session: session}, nil
}

// Start opens the gateway connection and registers the message handler.
func (c *Channel) Start(ctx context.Context) error {
	c.session.AddHandler(c.handleMessage)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("discord: fetch identity: %w", err)
	}
	c.botID = user.ID
	slog.Info("discord: connected", "username", user.Username)
	return nil
}

func (c *Channel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.botID || m.Content == "" {
		return
	}
	c.Publish(bus.InboundEvent{
		SenderID:  m.Author.ID,
		ChatID:    m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	})
}

// Stop closes the gateway connection.
func (c *Channel) Stop(ctx context.Context) error {
	return c.session.Close()
}

// Send posts one outbound message to a Discord channel.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	_, err := c.session.ChannelMessageSend(evt.ChatID, evt.Content)
	return err
}
