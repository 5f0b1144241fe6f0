package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/robun/internal/bus"
)

// PublishFunc delivers an OutboundEvent; injected at construction so the
// tool stays decoupled from the concrete Bus type.
type PublishFunc func(bus.OutboundEvent)

// MessageTool publishes an outbound message, defaulting channel/chatId to
// the current turn's inbound event when the LLM omits them.
type MessageTool struct {
	Publish PublishFunc
}

func (t *MessageTool) Name() string        { return "message" }
func (t *MessageTool) Description() string { return "Send a message to the current or a specified channel/chat" }
func (t *MessageTool) Schema() map[string]interface{} {
	return stringSchema("message", map[string]interface{}{
		"content": prop("Message content"),
		"channel": prop("Optional target channel, defaults to the current conversation"),
		"chat_id": prop("Optional target chat id, defaults to the current conversation"),
	}, "content")
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return "", fmt.Errorf("content is required")
	}

	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)
	if channel == "" || chatID == "" {
		if tc, ok := TurnContextFrom(ctx); ok {
			if channel == "" {
				channel = tc.Channel
			}
			if chatID == "" {
				chatID = tc.ChatID
			}
		}
	}
	if channel == "" || chatID == "" {
		return "Error: no channel/chat_id available for this turn", nil
	}

	t.Publish(bus.OutboundEvent{Channel: channel, ChatID: chatID, Content: content})
	return "Message sent.", nil
}
