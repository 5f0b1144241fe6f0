// Package wsgateway is the plain WebSocket gateway channel adapter, built
// on github.com/coder/websocket: each accepted connection is one chat id,
// framed as JSON text messages.
package wsgateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

type wireMessage struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// Channel serves an HTTP upgrade endpoint; every accepted connection
// becomes one chat id (assigned by the caller, e.g. a path segment or
// query parameter) addressable from OutboundEvent.ChatID.
type Channel struct {
	*channels.Base
	server *http.Server

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

// New creates a wsgateway channel that listens on addr.
func New(addr string, b *bus.Bus, allowlist []string) *Channel {
	c := &Channel{Base: channels.NewBase("wsgateway", b, allowlist), conns: make(map[string]*websocket.Conn)}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.handleUpgrade)
	c.server = &http.Server{Addr: addr, Handler: mux}
	return c
}

func (c *Channel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("wsgateway: upgrade failed", "error", err)
		return
	}
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		conn.Close(websocket.StatusPolicyViolation, "chat_id query parameter required")
		return
	}
	c.mu.Lock()
	c.conns[chatID] = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.conns, chatID)
		c.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		var msg wireMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		c.Publish(bus.InboundEvent{SenderID: msg.SenderID, ChatID: chatID, Content: msg.Content})
	}
}

// Start begins serving HTTP upgrade requests in the background.
func (c *Channel) Start(ctx context.Context) error {
	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("wsgateway: listener exited", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP listener.
func (c *Channel) Stop(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

// Send writes one outbound message to the connection registered for
// evt.ChatID, or reports an error if no client is connected.
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	c.mu.RLock()
	conn, ok := c.conns[evt.ChatID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsgateway: no connection for chat id %q", evt.ChatID)
	}
	return wsjson.Write(ctx, conn, wireMessage{Content: evt.Content})
}
