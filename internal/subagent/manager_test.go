package subagent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/config"
	"github.com/nextlevelbuilder/robun/internal/providers"
)

type scriptedProvider struct {
	responses []*providers.Response
	i         int
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []providers.Message, opts providers.Options) (*providers.Response, error) {
	if p.i >= len(p.responses) {
		return &providers.Response{Content: "", FinishReason: providers.FinishStop}, nil
	}
	r := p.responses[p.i]
	p.i++
	return r, nil
}
func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "m" }

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Agents.Workspace = t.TempDir()
	return cfg
}

func TestSpawnReturnsImmediateAcknowledgement(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.Response{
		{Content: "done", FinishReason: providers.FinishStop},
	}}
	b := bus.New()
	m := NewManager(b, provider, testConfig(t))

	ack := m.Spawn("summarize the repo", "mytask", "cli", "u1")
	if !strings.Contains(ack, "mytask") {
		t.Fatalf("expected label in acknowledgement, got %q", ack)
	}
}

func TestSpawnPublishesSystemEventOnCompletion(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.Response{
		{Content: "the result", FinishReason: providers.FinishStop},
	}}
	b := bus.New()
	m := NewManager(b, provider, testConfig(t))

	m.Spawn("do a thing", "label", "cli", "u1")

	evt, err := b.ConsumeInbound(2 * time.Second)
	if err != nil {
		t.Fatalf("expected a system event, got err=%v", err)
	}
	if evt.Channel != bus.SystemChannel {
		t.Fatalf("expected channel=system, got %q", evt.Channel)
	}
	if evt.ChatID != "cli:u1" {
		t.Fatalf("expected chatId to encode origin, got %q", evt.ChatID)
	}
	if evt.SenderID != "subagent" {
		t.Fatalf("expected senderId=subagent, got %q", evt.SenderID)
	}
	if !strings.Contains(evt.Content, "the result") || !strings.Contains(evt.Content, "Status: ok") {
		t.Fatalf("expected announcement with status and result, got %q", evt.Content)
	}
}

func TestSpawnErrorProducesErrorAnnouncement(t *testing.T) {
	provider := &scriptedProvider{} // empty -> provider.Chat returns no error, but to force an error path we need a failing provider
	b := bus.New()
	cfg := testConfig(t)
	m := NewManager(b, &failingProvider{}, cfg)
	_ = provider

	m.Spawn("task that fails", "", "cli", "u1")

	evt, err := b.ConsumeInbound(2 * time.Second)
	if err != nil {
		t.Fatalf("expected a system event, got err=%v", err)
	}
	if !strings.Contains(evt.Content, "Status: error") {
		t.Fatalf("expected error status in announcement, got %q", evt.Content)
	}
}

type failingProvider struct{}

func (failingProvider) Chat(ctx context.Context, messages []providers.Message, opts providers.Options) (*providers.Response, error) {
	return nil, errBoom
}
func (failingProvider) Name() string         { return "failing" }
func (failingProvider) DefaultModel() string { return "m" }

var errBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }

func TestCancelUnknownTaskReturnsFalse(t *testing.T) {
	b := bus.New()
	m := NewManager(b, &scriptedProvider{}, testConfig(t))
	if m.Cancel("nonexistent") {
		t.Fatal("expected Cancel to return false for an unknown id")
	}
}
