package bus

import (
	"sync"
	"testing"
	"time"
)

func TestPublishConsumeInboundFIFO(t *testing.T) {
	b := New()
	b.PublishInbound(InboundEvent{Channel: "cli", ChatID: "u1", Content: "one"})
	b.PublishInbound(InboundEvent{Channel: "cli", ChatID: "u1", Content: "two"})

	evt, err := b.ConsumeInbound(time.Second)
	if err != nil || evt.Content != "one" {
		t.Fatalf("expected 'one', got %q err=%v", evt.Content, err)
	}
	evt, err = b.ConsumeInbound(time.Second)
	if err != nil || evt.Content != "two" {
		t.Fatalf("expected 'two', got %q err=%v", evt.Content, err)
	}
}

func TestConsumeInboundReleasesWaiterImmediately(t *testing.T) {
	b := New()
	done := make(chan InboundEvent, 1)
	go func() {
		evt, err := b.ConsumeInbound(2 * time.Second)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- evt
	}()
	time.Sleep(20 * time.Millisecond) // let the goroutine start waiting
	b.PublishInbound(InboundEvent{Channel: "cli", ChatID: "u1", Content: "released"})

	select {
	case evt := <-done:
		if evt.Content != "released" {
			t.Fatalf("expected 'released', got %q", evt.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was never released")
	}
}

func TestConsumeInboundTimeout(t *testing.T) {
	b := New()
	_, err := b.ConsumeInbound(10 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestConsumeInboundStopped(t *testing.T) {
	b := New()
	done := make(chan error, 1)
	go func() {
		_, err := b.ConsumeInbound(10 * time.Second)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	b.Stop()

	select {
	case err := <-done:
		if err != ErrStopped {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer never unblocked after Stop")
	}
}

func TestSubscribeOutboundOrderAndMultipleHandlers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var calls []string

	b.SubscribeOutbound("cli", func(evt OutboundEvent) {
		mu.Lock()
		calls = append(calls, "h1:"+evt.Content)
		mu.Unlock()
	})
	b.SubscribeOutbound("cli", func(evt OutboundEvent) {
		mu.Lock()
		calls = append(calls, "h2:"+evt.Content)
		mu.Unlock()
	})

	go b.DispatchOutbound()
	b.PublishOutbound(OutboundEvent{Channel: "cli", Content: "a"})
	b.PublishOutbound(OutboundEvent{Channel: "cli", Content: "b"})

	time.Sleep(50 * time.Millisecond)
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"h1:a", "h2:a", "h1:b", "h2:b"}
	if len(calls) != len(want) {
		t.Fatalf("got %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("got %v, want %v", calls, want)
		}
	}
}

func TestDispatchOutboundDropsWhenNoSubscriber(t *testing.T) {
	b := New()
	go b.DispatchOutbound()
	b.PublishOutbound(OutboundEvent{Channel: "nobody", Content: "lost"})
	time.Sleep(30 * time.Millisecond)
	b.Stop() // must not hang or panic
}

func TestDispatchOutboundSurvivesHandlerPanic(t *testing.T) {
	b := New()
	var secondCalled bool
	var mu sync.Mutex

	b.SubscribeOutbound("cli", func(evt OutboundEvent) {
		panic("boom")
	})
	go b.DispatchOutbound()

	b.PublishOutbound(OutboundEvent{Channel: "cli", Content: "1"})
	b.PublishOutbound(OutboundEvent{Channel: "cli", Content: "2"})
	time.Sleep(50 * time.Millisecond)
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	_ = secondCalled // dispatcher must not have crashed; reaching here is the assertion
}
