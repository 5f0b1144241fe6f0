// Package subagent runs fire-and-forget isolated agent executors whose
// results re-enter the message bus as synthetic system messages.
package subagent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/config"
	"github.com/nextlevelbuilder/robun/internal/providers"
	"github.com/nextlevelbuilder/robun/internal/tools"
)

const maxIterations = 15
const reflectionNudge = "Reflect on the results and decide next steps."

// Manager satisfies tools.Spawner: it builds an isolated tool registry (no
// message, spawn, or cron tools) per task and runs the tool loop in the
// background.
type Manager struct {
	Bus      *bus.Bus
	Provider providers.Provider
	Config   *config.Config

	mu      sync.Mutex
	wg      sync.WaitGroup
	running map[string]context.CancelFunc
}

func NewManager(b *bus.Bus, provider providers.Provider, cfg *config.Config) *Manager {
	return &Manager{Bus: b, Provider: provider, Config: cfg, running: map[string]context.CancelFunc{}}
}

// Cancel stops a still-running task by id. Returns false if id is unknown
// or has already finished.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	cancel, ok := m.running[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Active returns how many sub-agent tasks are currently in flight.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Shutdown cancels every in-flight task and waits up to timeout for them to
// publish their announcements (or give up cleanly). Returns false if the
// timeout elapsed with tasks still running.
func (m *Manager) Shutdown(timeout time.Duration) bool {
	m.mu.Lock()
	for _, cancel := range m.running {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		slog.Warn("subagent: shutdown timed out with tasks still in flight", "active", m.Active())
		return false
	}
}

// Spawn returns immediately with an acknowledgement and runs the task on a
// background goroutine.
func (m *Manager) Spawn(task, label, originChannel, originChatID string) string {
	id := newTaskID()
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.running[id] = cancel
	m.mu.Unlock()
	m.wg.Add(1)

	go m.run(ctx, id, task, label, originChannel, originChatID)

	if label == "" {
		return fmt.Sprintf("Sub-agent %s spawned.", id)
	}
	return fmt.Sprintf("Sub-agent %q (%s) spawned.", label, id)
}

func (m *Manager) run(ctx context.Context, id, task, label, originChannel, originChatID string) {
	defer func() {
		m.mu.Lock()
		delete(m.running, id)
		m.mu.Unlock()
		m.wg.Done()
	}()

	status := "ok"
	result, err := m.execute(ctx, task)
	if err != nil {
		status = "error"
		result = "Error: " + err.Error()
	}

	announcement := fmt.Sprintf(
		"Sub-agent task %s finished.\nStatus: %s\nOriginal task: %s\nResult: %s\n\nSummarize this briefly for the user.",
		id, status, task, result,
	)

	m.Bus.PublishInbound(bus.InboundEvent{
		Channel:   bus.SystemChannel,
		SenderID:  "subagent",
		ChatID:    originChannel + ":" + originChatID,
		Content:   announcement,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"task_id": id, "label": label},
	})
}

// execute runs an isolated tool loop with a lowered iteration ceiling and a
// tool registry that can never recurse into spawn, message, or cron.
func (m *Manager) execute(ctx context.Context, task string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	workspace := m.Config.Agents.Workspace
	reg := tools.NewRegistry()
	reg.Register(&tools.ReadFileTool{Workspace: workspace, Restrict: m.Config.Tools.RestrictWorkspace})
	reg.Register(&tools.WriteFileTool{Workspace: workspace, Restrict: m.Config.Tools.RestrictWorkspace})
	reg.Register(&tools.EditFileTool{Workspace: workspace, Restrict: m.Config.Tools.RestrictWorkspace})
	reg.Register(&tools.ListDirTool{Workspace: workspace, Restrict: m.Config.Tools.RestrictWorkspace})
	reg.Register(&tools.ExecTool{
		Workspace: workspace,
		Restrict:  m.Config.Tools.RestrictWorkspace,
		Timeout:   time.Duration(m.Config.Tools.ExecTimeoutSeconds) * time.Second,
	})
	reg.Register(&tools.WebSearchTool{APIKey: m.Config.Tools.WebSearchAPIKey, HTTPClient: http.DefaultClient})
	reg.Register(&tools.WebFetchTool{HTTPClient: http.DefaultClient})

	systemPrompt := fmt.Sprintf(
		"You are an isolated sub-agent. You cannot spawn further sub-agents, send direct messages, or manage cron jobs. "+
			"Workspace: %s. Perform the task you were given and report a concise final result.",
		workspace,
	)
	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: task},
	}

	defs := make([]providers.ToolDefinition, 0, len(reg.List()))
	for _, t := range reg.List() {
		defs = append(defs, providers.ToolDefinition{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}

	for i := 0; i < maxIterations; i++ {
		resp, callErr := m.Provider.Chat(ctx, messages, providers.Options{
			Model:       m.Config.Agents.Model,
			Tools:       defs,
			MaxTokens:   m.Config.Agents.MaxTokens,
			Temperature: m.Config.Agents.Temperature,
		})
		if callErr != nil {
			return "", fmt.Errorf("subagent: provider call: %w", callErr)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, providers.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			out := reg.Execute(ctx, call.Name, call.Arguments)
			messages = append(messages, providers.Message{Role: "tool", Content: out, ToolCallID: call.ID})
		}
		messages = append(messages, providers.Message{Role: "user", Content: reflectionNudge})
	}
	return "", fmt.Errorf("sub-agent hit its iteration ceiling without a final answer")
}

func newTaskID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		slog.Warn("subagent: crypto/rand failed, falling back to time-based id", "error", err)
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(buf)
}
