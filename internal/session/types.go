// Package session implements the per-conversation JSONL transcript store:
// one file per session key, a write-back in-memory cache, and atomic
// temp-file-then-rename rewrites on save.
package session

import (
	"time"

	"github.com/nextlevelbuilder/robun/internal/providers"
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role       string               `json:"role"` // user | assistant | system | tool
	Content    string               `json:"content"`
	Timestamp  time.Time            `json:"timestamp"`
	ToolsUsed  []string             `json:"toolsUsed,omitempty"`
	ToolCallID string               `json:"toolCallId,omitempty"`
	ToolCalls  []providers.ToolCall `json:"toolCalls,omitempty"` // assistant role only
}

// Session is the ordered transcript of one conversation plus metadata.
type Session struct {
	Key              string            `json:"-"`
	Messages         []Message         `json:"-"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	LastConsolidated int               `json:"lastConsolidated"`
}

// metadataRecord is line 1 of a session's .jsonl file.
type metadataRecord struct {
	Type             string            `json:"_type"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	LastConsolidated int               `json:"lastConsolidated"`
}

// Info is the lightweight listing shape returned by ListSessions.
type Info struct {
	Key          string
	MessageCount int
	UpdatedAt    time.Time
}
