// Package agent implements the per-inbound-message orchestrator: build
// context, call the LLM, execute tool calls, feed results back, iterate
// until a final reply or the iteration ceiling is hit.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/robun/internal/bus"
	agentctx "github.com/nextlevelbuilder/robun/internal/context"
	"github.com/nextlevelbuilder/robun/internal/memory"
	"github.com/nextlevelbuilder/robun/internal/providers"
	"github.com/nextlevelbuilder/robun/internal/session"
	"github.com/nextlevelbuilder/robun/internal/tools"
)

const reflectionNudge = "Reflect on the results and decide next steps."
const noFinalReply = "I've completed processing but have no response to give."
const helpText = "Commands:\n/new - start a fresh conversation (archives the current one)\n/help - show this message"
const newAck = "New session started. Previous conversation has been archived to memory."

// Loop is the single-consumer orchestrator that turns one InboundEvent into
// zero or more OutboundEvents.
type Loop struct {
	Bus          *bus.Bus
	Sessions     *session.Store
	Memory       *memory.Store
	Consolidator *memory.Consolidator
	Tools        *tools.Registry
	Provider     providers.Provider
	Builder      *agentctx.Builder

	Model             string
	Temperature       float64
	MaxTokens         int
	MaxToolIterations int
	MemoryWindow      int
}

// Run drains the inbound queue until ctx is cancelled or the bus is
// stopped. Each event is handled in isolation: a panic or error in
// ProcessMessage never aborts the loop, it is turned into an outbound
// apology and the loop continues.
func (l *Loop) Run(ctx context.Context) {
	for {
		evt, err := l.Bus.ConsumeInbound(500 * time.Millisecond)
		if err == bus.ErrStopped {
			return
		}
		if err == bus.ErrTimeout {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		l.handleSafely(ctx, evt)
	}
}

func (l *Loop) handleSafely(ctx context.Context, evt bus.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.Bus.PublishOutbound(bus.OutboundEvent{
				Channel: evt.Channel,
				ChatID:  evt.ChatID,
				Content: fmt.Sprintf("Sorry, something went wrong: %v", r),
			})
		}
	}()

	out, err := l.ProcessMessage(ctx, evt, "")
	if err != nil {
		l.Bus.PublishOutbound(bus.OutboundEvent{
			Channel: evt.Channel,
			ChatID:  evt.ChatID,
			Content: fmt.Sprintf("Sorry, something went wrong: %s", err.Error()),
		})
		return
	}
	if out != nil {
		l.Bus.PublishOutbound(*out)
	}
}

// ProcessMessage handles one inbound event end-to-end: route system events,
// resolve the session, handle slash commands, build context, run the tool
// loop, persist, and return the reply as an OutboundEvent.
func (l *Loop) ProcessMessage(ctx context.Context, evt bus.InboundEvent, sessionKeyOverride string) (*bus.OutboundEvent, error) {
	if evt.Channel == bus.SystemChannel {
		return l.processSystemMessage(ctx, evt)
	}

	sessionKey := sessionKeyOverride
	if sessionKey == "" {
		sessionKey = evt.SessionKey()
	}
	sess := l.Sessions.GetOrCreate(sessionKey)

	if reply, handled := l.handleSlashCommand(ctx, sessionKey, sess, evt); handled {
		return reply, nil
	}

	if len(sess.Messages) > l.MemoryWindow && l.Consolidator != nil {
		snapshot := cloneSession(sess)
		go l.Consolidator.Run(ctx, sessionKey, snapshot, memory.Incremental, l.MemoryWindow, l.Sessions.Save)
	}

	turnCtx := tools.WithTurnContext(ctx, tools.TurnContext{Channel: evt.Channel, ChatID: evt.ChatID})

	history := agentctx.HistoryWindow(sess.Messages, l.MemoryWindow)
	messages, err := l.Builder.BuildMessages(agentctx.Turn{
		History:    history,
		Content:    evt.Content,
		MediaPaths: evt.Media,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: build context: %w", err)
	}

	content, toolsUsed, err := l.runToolLoop(turnCtx, messages)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess.Messages = append(sess.Messages,
		session.Message{Role: "user", Content: evt.Content, Timestamp: now},
		session.Message{Role: "assistant", Content: content, Timestamp: now, ToolsUsed: toolsUsed},
	)
	sess.UpdatedAt = now
	if err := l.Sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("agent: save session: %w", err)
	}

	return &bus.OutboundEvent{Channel: evt.Channel, ChatID: evt.ChatID, Content: content}, nil
}

// ProcessDirect runs one turn on sessionKey without going through the bus,
// bypassing channel/chatId resolution from an InboundEvent. It is the
// synchronous call path cron and heartbeat use: the reply is returned
// directly to the caller instead of being published outbound, though a
// channel/chatId is still attached to tool context so the message/spawn/
// cron tools have a default target.
func (l *Loop) ProcessDirect(ctx context.Context, message, sessionKey, channel, chatID string) (string, error) {
	evt := bus.InboundEvent{Channel: channel, ChatID: chatID, SenderID: "system", Content: message, Timestamp: time.Now()}
	out, err := l.ProcessMessage(ctx, evt, sessionKey)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// handleSlashCommand short-circuits on exact (trimmed, lowercased) /new and
// /help content, returning handled=true when it owns the reply.
func (l *Loop) handleSlashCommand(ctx context.Context, sessionKey string, sess *session.Session, evt bus.InboundEvent) (*bus.OutboundEvent, bool) {
	switch strings.ToLower(strings.TrimSpace(evt.Content)) {
	case "/new":
		snapshot := cloneSession(sess)
		sess.Messages = nil
		sess.LastConsolidated = 0
		sess.UpdatedAt = time.Now()
		_ = l.Sessions.Save(sess)
		l.Sessions.Invalidate(sessionKey)
		if l.Consolidator != nil && len(snapshot.Messages) > 0 {
			go l.Consolidator.Run(ctx, sessionKey, snapshot, memory.ArchiveAll, l.MemoryWindow, l.Sessions.Save)
		}
		return &bus.OutboundEvent{Channel: evt.Channel, ChatID: evt.ChatID, Content: newAck}, true
	case "/help":
		return &bus.OutboundEvent{Channel: evt.Channel, ChatID: evt.ChatID, Content: helpText}, true
	default:
		return nil, false
	}
}

// processSystemMessage handles synthetic events published on bus.SystemChannel
// (currently only the sub-agent manager): chatId encodes the origin session
// key, the reply is routed back to the origin, not to "system".
func (l *Loop) processSystemMessage(ctx context.Context, evt bus.InboundEvent) (*bus.OutboundEvent, error) {
	originChannel, originChatID, ok := strings.Cut(evt.ChatID, ":")
	if !ok {
		return nil, fmt.Errorf("agent: malformed system chat id %q", evt.ChatID)
	}
	sessionKey := evt.ChatID
	sess := l.Sessions.GetOrCreate(sessionKey)

	turnCtx := tools.WithTurnContext(ctx, tools.TurnContext{Channel: originChannel, ChatID: originChatID})

	history := agentctx.HistoryWindow(sess.Messages, l.MemoryWindow)
	prefixed := fmt.Sprintf("[System: %s] %s", evt.SenderID, evt.Content)
	messages, err := l.Builder.BuildMessages(agentctx.Turn{History: history, Content: prefixed})
	if err != nil {
		return nil, fmt.Errorf("agent: build context: %w", err)
	}

	content, toolsUsed, err := l.runToolLoop(turnCtx, messages)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess.Messages = append(sess.Messages,
		session.Message{Role: "user", Content: prefixed, Timestamp: now},
		session.Message{Role: "assistant", Content: content, Timestamp: now, ToolsUsed: toolsUsed},
	)
	sess.UpdatedAt = now
	if err := l.Sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("agent: save session: %w", err)
	}

	return &bus.OutboundEvent{Channel: originChannel, ChatID: originChatID, Content: content}, nil
}

// runToolLoop drives the function-calling cycle: call the provider, execute
// any requested tools, feed results back, and repeat until a final text
// reply or the iteration ceiling.
func (l *Loop) runToolLoop(ctx context.Context, messages []providers.Message) (string, []string, error) {
	ceiling := l.MaxToolIterations
	if ceiling <= 0 {
		ceiling = 20
	}
	toolDefs := toolDefinitions(l.Tools)
	var toolsUsed []string
	seen := map[string]bool{}

	for i := 0; i < ceiling; i++ {
		resp, err := l.Provider.Chat(ctx, messages, providers.Options{
			Model:       l.Model,
			Tools:       toolDefs,
			MaxTokens:   l.MaxTokens,
			Temperature: l.Temperature,
		})
		if err != nil {
			return "", nil, fmt.Errorf("agent: provider call: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, toolsUsed, nil
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Reasoning: resp.ReasoningContent,
		})
		for _, call := range resp.ToolCalls {
			result := l.Tools.Execute(ctx, call.Name, call.Arguments)
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
			if !seen[call.Name] {
				seen[call.Name] = true
				toolsUsed = append(toolsUsed, call.Name)
			}
		}
		messages = append(messages, providers.Message{Role: "user", Content: reflectionNudge})
	}
	return noFinalReply, toolsUsed, nil
}

func toolDefinitions(reg *tools.Registry) []providers.ToolDefinition {
	list := reg.List()
	defs := make([]providers.ToolDefinition, 0, len(list))
	for _, t := range list {
		defs = append(defs, providers.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// cloneSession snapshots the message slice so a background consolidation
// never races a concurrent append to the live Session.
func cloneSession(sess *session.Session) *session.Session {
	clone := *sess
	clone.Messages = append([]session.Message(nil), sess.Messages...)
	return &clone
}
