// Package mochat is the Mochat channel adapter: a generic bridge protocol
// for self-hosted webhook-style chat front-ends, carried over a persistent
// WebSocket connection using github.com/gorilla/websocket.
package mochat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

type wireMessage struct {
	SenderID string `json:"sender_id"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
}

// Channel bridges to a Mochat-compatible front-end over a WebSocket
// connection, reconnecting on drop.
type Channel struct {
	*channels.Base
	url    string
	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// New creates a Mochat channel pointed at a bridge WebSocket URL.
func New(url string, b *bus.Bus, allowlist []string) *Channel {
	return &Channel{Base: channels.NewBase("mochat", b, allowlist), url: url}
}

// Start connects to the bridge and begins the reconnecting receive loop.
func (c *Channel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if err := c.connect(); err != nil {
		slog.Warn("mochat: initial connection failed, will retry", "error", err)
	}
	go c.listenLoop(runCtx)
	return nil
}

func (c *Channel) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("mochat: dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Channel) listenLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			if err := c.connect(); err != nil {
				time.Sleep(5 * time.Second)
				continue
			}
			continue
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("mochat: read error, reconnecting", "error", err)
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			time.Sleep(2 * time.Second)
			continue
		}
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.Publish(bus.InboundEvent{SenderID: msg.SenderID, ChatID: msg.ChatID, Content: msg.Content})
	}
}

// Stop cancels the receive loop and closes the connection.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	return nil
}

// Send writes one outbound message as a JSON frame.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("mochat: not connected")
	}
	return conn.WriteJSON(wireMessage{ChatID: evt.ChatID, Content: evt.Content})
}
