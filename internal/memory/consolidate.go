package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/robun/internal/providers"
	"github.com/nextlevelbuilder/robun/internal/session"
)

// Mode selects between the two consolidation triggers: the rolling window
// threshold (Incremental) and a full archive on /new (ArchiveAll).
type Mode int

const (
	Incremental Mode = iota
	ArchiveAll
)

const systemInstruction = "You are a memory consolidation agent. Respond only with valid JSON."

type llmResult struct {
	HistoryEntry string `json:"history_entry"`
	MemoryUpdate string `json:"memory_update"`
}

// Consolidator folds slices of a session's transcript into the long-term
// memory artifacts via an LLM call. One lock guards against overlapping
// consolidations on the same session key; a latecomer observes the lock
// held and returns immediately rather than double-appending to HISTORY.md.
type Consolidator struct {
	store    *Store
	provider providers.Provider
	model    string

	mu     sync.Mutex
	active map[string]bool
}

// NewConsolidator builds a Consolidator backed by store and provider.
func NewConsolidator(store *Store, provider providers.Provider, model string) *Consolidator {
	return &Consolidator{store: store, provider: provider, model: model, active: map[string]bool{}}
}

// tryLock returns false if a consolidation is already running for sessionKey.
func (c *Consolidator) tryLock(sessionKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[sessionKey] {
		return false
	}
	c.active[sessionKey] = true
	return true
}

func (c *Consolidator) unlock(sessionKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, sessionKey)
}

// Run consolidates sess according to mode, mutating sess.LastConsolidated on
// success. Failures are logged and swallowed: the transcript keeps growing
// and the caller will retry on the next threshold crossing. Must be called
// from its own goroutine by the agent loop.
func (c *Consolidator) Run(ctx context.Context, sessionKey string, sess *session.Session, mode Mode, memoryWindow int, save func(*session.Session) error) {
	if !c.tryLock(sessionKey) {
		slog.Info("memory: consolidation already running, skipping", "session", sessionKey)
		return
	}
	defer c.unlock(sessionKey)

	var slice []session.Message
	var newCursor int
	switch mode {
	case ArchiveAll:
		slice = sess.Messages
		newCursor = 0
	default:
		start := sess.LastConsolidated // snapshot to avoid racing a concurrent append
		end := len(sess.Messages) - keepCount(memoryWindow)
		if end <= start || end > len(sess.Messages) {
			return
		}
		slice = sess.Messages[start:end]
		newCursor = end
	}
	if len(slice) == 0 {
		if mode == ArchiveAll {
			sess.LastConsolidated = 0
		}
		return
	}

	rendered := renderSlice(slice)
	currentMemory := c.store.ReadMemory()

	result, err := c.callLLM(ctx, rendered, currentMemory)
	if err != nil {
		slog.Warn("memory: consolidation call failed", "session", sessionKey, "error", err)
		return
	}

	if err := c.store.AppendHistory(result.HistoryEntry); err != nil {
		slog.Warn("memory: failed to append history", "session", sessionKey, "error", err)
		return
	}
	if result.MemoryUpdate != "" && result.MemoryUpdate != currentMemory {
		if err := c.store.WriteMemory(result.MemoryUpdate); err != nil {
			slog.Warn("memory: failed to write memory", "session", sessionKey, "error", err)
			return
		}
	}

	sess.LastConsolidated = newCursor
	if save != nil {
		if err := save(sess); err != nil {
			slog.Warn("memory: failed to persist lastConsolidated", "session", sessionKey, "error", err)
		}
	}
}

func keepCount(memoryWindow int) int {
	return memoryWindow / 2
}

func renderSlice(slice []session.Message) string {
	var b strings.Builder
	for _, m := range slice {
		ts := m.Timestamp.Format(time.RFC3339)
		if len(ts) > 16 {
			ts = ts[:16]
		}
		role := strings.ToUpper(m.Role)
		line := fmt.Sprintf("[%s] %s", ts, role)
		if len(m.ToolsUsed) > 0 {
			line += fmt.Sprintf(" [tools: %s]", strings.Join(m.ToolsUsed, ", "))
		}
		line += ": " + m.Content
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

var fencedCodeRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func (c *Consolidator) callLLM(ctx context.Context, rendered, currentMemory string) (*llmResult, error) {
	prompt := fmt.Sprintf(`Consolidate the following conversation slice into long-term memory.

Current long-term memory:
%s

Conversation slice to consolidate:
%s

Respond with a JSON object with exactly two keys:
- "history_entry": one summary paragraph, timestamp-prefixed
- "memory_update": the full new long-term memory content

Respond only with valid JSON, no other text.`, currentMemory, rendered)

	resp, err := c.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: prompt},
	}, providers.Options{Model: c.model, MaxTokens: 2048})
	if err != nil {
		return nil, err
	}
	if resp.FinishReason == providers.FinishError {
		return nil, fmt.Errorf("memory: provider error: %s", resp.Content)
	}

	raw := strings.TrimSpace(resp.Content)
	if m := fencedCodeRe.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}

	var result llmResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		if repaired, ok := lenientJSON(raw); ok {
			result = repaired
		} else {
			return nil, fmt.Errorf("memory: malformed consolidation JSON: %w", err)
		}
	}
	return &result, nil
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func lenientJSON(raw string) (llmResult, bool) {
	fixed := trailingCommaRe.ReplaceAllString(raw, "$1")
	var result llmResult
	if err := json.Unmarshal([]byte(fixed), &result); err == nil {
		return result, true
	}
	return llmResult{}, false
}
