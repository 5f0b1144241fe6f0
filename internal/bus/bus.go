package bus

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrTimeout is returned by ConsumeInbound when no event arrives within the budget.
var ErrTimeout = errors.New("bus: timeout")

// ErrStopped is returned to a pending consumer once Stop has been called.
var ErrStopped = errors.New("bus: stopped")

// Bus is the single-consumer inbound / multi-subscriber outbound broker.
// It is the only structure in this system that must be safe under
// concurrent multi-producer access; everything downstream of ConsumeInbound
// runs on the single agent-loop goroutine.
type Bus struct {
	inboundMu sync.Mutex
	inbound   []InboundEvent
	waiters   []chan InboundEvent

	outboundMu sync.Mutex
	outbound   []OutboundEvent
	notify     chan struct{}

	subMu sync.RWMutex
	subs  map[string][]OutboundHandler

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		notify: make(chan struct{}, 1),
		subs:   make(map[string][]OutboundHandler),
		stopCh: make(chan struct{}),
	}
}

// PublishInbound appends the event to the inbound queue. If a consumer is
// already blocked in ConsumeInbound it is released immediately with this
// event, bypassing the queue entirely (still FIFO with respect to other
// publishes since waiters are served in arrival order).
func (b *Bus) PublishInbound(evt InboundEvent) {
	b.inboundMu.Lock()
	if len(b.waiters) > 0 {
		w := b.waiters[0]
		b.waiters = b.waiters[1:]
		b.inboundMu.Unlock()
		w <- evt
		return
	}
	b.inbound = append(b.inbound, evt)
	b.inboundMu.Unlock()
}

// ConsumeInbound returns the next inbound event, or ErrTimeout if none
// arrives within timeout, or ErrStopped if Stop is called first. There is
// exactly one logical consumer: concurrent callers are each handed their own
// event in arrival order, never the same one twice.
func (b *Bus) ConsumeInbound(timeout time.Duration) (InboundEvent, error) {
	b.inboundMu.Lock()
	if len(b.inbound) > 0 {
		evt := b.inbound[0]
		b.inbound = b.inbound[1:]
		b.inboundMu.Unlock()
		return evt, nil
	}
	w := make(chan InboundEvent, 1)
	b.waiters = append(b.waiters, w)
	b.inboundMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case evt := <-w:
		return evt, nil
	case <-timer.C:
		b.removeWaiter(w)
		return InboundEvent{}, ErrTimeout
	case <-b.stopCh:
		b.removeWaiter(w)
		return InboundEvent{}, ErrStopped
	}
}

func (b *Bus) removeWaiter(w chan InboundEvent) {
	b.inboundMu.Lock()
	defer b.inboundMu.Unlock()
	for i, ww := range b.waiters {
		if ww == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// PublishOutbound appends the event to the outbound queue.
func (b *Bus) PublishOutbound(evt OutboundEvent) {
	b.outboundMu.Lock()
	b.outbound = append(b.outbound, evt)
	b.outboundMu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// SubscribeOutbound registers a handler for a channel. Multiple handlers per
// channel are allowed and are invoked in registration order.
func (b *Bus) SubscribeOutbound(channel string, handler OutboundHandler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subs[channel] = append(b.subs[channel], handler)
}

// DispatchOutbound drains the outbound queue in FIFO order, invoking
// subscribers sequentially for each event, until Stop is called. Handler
// panics are recovered, logged, and do not abort the dispatcher.
func (b *Bus) DispatchOutbound() {
	for {
		select {
		case <-b.stopCh:
			b.drainOnce()
			return
		case <-b.notify:
			b.drainOnce()
		}
	}
}

func (b *Bus) drainOnce() {
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		b.outboundMu.Lock()
		if len(b.outbound) == 0 {
			b.outboundMu.Unlock()
			return
		}
		evt := b.outbound[0]
		b.outbound = b.outbound[1:]
		b.outboundMu.Unlock()

		b.subMu.RLock()
		handlers := append([]OutboundHandler(nil), b.subs[evt.Channel]...)
		b.subMu.RUnlock()

		if len(handlers) == 0 {
			slog.Warn("outbound event dropped: no subscriber", "channel", evt.Channel, "chat_id", evt.ChatID)
			continue
		}
		for _, h := range handlers {
			b.invoke(h, evt)
		}
	}
}

func (b *Bus) invoke(h OutboundHandler, evt OutboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("outbound handler panicked", "channel", evt.Channel, "panic", r)
		}
	}()
	h(evt)
}

// Stop causes DispatchOutbound to exit after the current event and releases
// any pending ConsumeInbound call.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}
