package tools

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/robun/internal/bus"
)

func TestMessageToolUsesExplicitTarget(t *testing.T) {
	var published bus.OutboundEvent
	tool := &MessageTool{Publish: func(evt bus.OutboundEvent) { published = evt }}

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"content": "hi", "channel": "discord", "chat_id": "c1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if published.Channel != "discord" || published.ChatID != "c1" || published.Content != "hi" {
		t.Fatalf("got %+v", published)
	}
}

func TestMessageToolDefaultsFromTurnContext(t *testing.T) {
	var published bus.OutboundEvent
	tool := &MessageTool{Publish: func(evt bus.OutboundEvent) { published = evt }}

	ctx := WithTurnContext(context.Background(), TurnContext{Channel: "cli", ChatID: "u1"})
	_, err := tool.Execute(ctx, map[string]interface{}{"content": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if published.Channel != "cli" || published.ChatID != "u1" {
		t.Fatalf("expected defaults from turn context, got %+v", published)
	}
}

func TestMessageToolNoContextNoTarget(t *testing.T) {
	tool := &MessageTool{Publish: func(bus.OutboundEvent) { t.Fatal("should not publish") }}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"content": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if got == "" || got[:7] != "Error: " {
		t.Fatalf("expected an Error: result, got %q", got)
	}
}

type fakeSpawner struct {
	task, label, channel, chatID string
}

func (f *fakeSpawner) Spawn(task, label, originChannel, originChatID string) string {
	f.task, f.label, f.channel, f.chatID = task, label, originChannel, originChatID
	return "spawned:" + label
}

func TestSpawnToolDelegatesWithTurnContext(t *testing.T) {
	sp := &fakeSpawner{}
	tool := &SpawnTool{Manager: sp}
	ctx := WithTurnContext(context.Background(), TurnContext{Channel: "cli", ChatID: "u1"})

	got, err := tool.Execute(ctx, map[string]interface{}{"task": "do thing", "label": "mytask"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "spawned:mytask" {
		t.Fatalf("got %q", got)
	}
	if sp.task != "do thing" || sp.channel != "cli" || sp.chatID != "u1" {
		t.Fatalf("spawner got wrong args: %+v", sp)
	}
}

func TestSpawnToolNoTurnContext(t *testing.T) {
	tool := &SpawnTool{Manager: &fakeSpawner{}}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"task": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got == "" || got[:7] != "Error: " {
		t.Fatalf("expected an Error: result, got %q", got)
	}
}
