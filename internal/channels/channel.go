// Package channels holds the Adapter contract every protocol driver
// implements plus a small base shared by the concrete adapters: allowlist
// enforcement and the bus wiring for inbound publish / outbound subscribe.
// Each adapter is a black box from the core's perspective; it pushes
// InboundEvents and renders OutboundEvents, nothing more.
package channels

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/robun/internal/bus"
)

// Adapter is the contract every channel driver satisfies.
type Adapter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, evt bus.OutboundEvent) error
}

// Base is embedded by every adapter: it owns the bus reference, the
// channel name used on InboundEvent.Channel / bus.SubscribeOutbound, and
// the allowlist the adapter itself is responsible for enforcing — the core
// trusts adapters to filter.
type Base struct {
	Name      string
	Bus       *bus.Bus
	Allowlist map[string]bool
}

// NewBase builds a Base for the named channel with its allowlist compiled
// into a set.
func NewBase(name string, b *bus.Bus, allowlist []string) *Base {
	allow := make(map[string]bool, len(allowlist))
	for _, id := range allowlist {
		allow[id] = true
	}
	return &Base{Name: name, Bus: b, Allowlist: allow}
}

// Allowed reports whether senderID may reach the core. An empty allowlist
// means "allow everyone" — the conservative default for adapters that are
// not configured with one.
func (b *Base) Allowed(senderID string) bool {
	if len(b.Allowlist) == 0 {
		return true
	}
	return b.Allowlist[senderID]
}

// Publish forwards one inbound event to the bus, dropping it (with a log
// line) when the sender is not on the allowlist.
func (b *Base) Publish(evt bus.InboundEvent) {
	if !b.Allowed(evt.SenderID) {
		slog.Warn("channel: sender not on allowlist, dropping", "channel", b.Name, "sender", evt.SenderID)
		return
	}
	evt.Channel = b.Name
	b.Bus.PublishInbound(evt)
}
