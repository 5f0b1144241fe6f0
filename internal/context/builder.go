// Package context composes the system prompt and assembles the per-turn
// message list the agent loop hands to an LLM provider: identity, workspace
// bootstrap files, long-term memory, and skills, followed by a bounded
// history window and the current user turn.
package context

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/nextlevelbuilder/robun/internal/bootstrap"
	"github.com/nextlevelbuilder/robun/internal/memory"
	"github.com/nextlevelbuilder/robun/internal/providers"
	"github.com/nextlevelbuilder/robun/internal/session"
	"github.com/nextlevelbuilder/robun/internal/skills"
)

const sectionSeparator = "\n\n---\n\n"

// Builder composes system prompts and message lists for one agent's workspace.
type Builder struct {
	Workspace    string
	MemoryStore  *memory.Store
	SkillsLoader *skills.Loader

	// MaxHistoryTokens additionally bounds the history window by a
	// token-aware estimate (tiktoken-go), on top of the message-count
	// window the agent loop already applied; 0 disables it.
	MaxHistoryTokens int
}

func NewBuilder(workspace string, memStore *memory.Store, skillsLoader *skills.Loader) *Builder {
	return &Builder{Workspace: workspace, MemoryStore: memStore, SkillsLoader: skillsLoader}
}

// Turn is the input to BuildMessages: the bounded history plus the current
// user content and any local media paths attached to it.
type Turn struct {
	History        []session.Message
	Content        string
	MediaPaths     []string
	RequestedSkill []string // skills explicitly requested for this turn
}

// BuildMessages produces [system] + history_window + [current user turn].
func (b *Builder) BuildMessages(turn Turn) ([]providers.Message, error) {
	systemPrompt, err := b.buildSystemPrompt(turn.RequestedSkill)
	if err != nil {
		return nil, err
	}

	history := turn.History
	if b.MaxHistoryTokens > 0 {
		history = TrimToBudget(history, b.MaxHistoryTokens)
	}

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, providers.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, b.buildUserMessage(turn.Content, turn.MediaPaths))
	return messages, nil
}

func (b *Builder) buildSystemPrompt(requestedSkills []string) (string, error) {
	var sections []string

	sections = append(sections, b.identitySection())

	for _, name := range bootstrap.Files {
		content, err := b.readWorkspaceFile(name)
		if err != nil {
			continue
		}
		sections = append(sections, "## "+name+"\n\n"+strings.TrimSpace(content))
	}

	if b.MemoryStore != nil {
		if mem := strings.TrimSpace(b.MemoryStore.ReadMemory()); mem != "" {
			sections = append(sections, "## Long-term Memory\n\n"+mem)
		}
	}

	if b.SkillsLoader != nil {
		all, err := b.SkillsLoader.Load()
		if err == nil && len(all) > 0 {
			active := skills.Active(all, requestedSkills)
			if rendered := skills.RenderActive(active); rendered != "" {
				sections = append(sections, rendered)
			}
			if summary := skills.RenderSummary(all); summary != "" {
				sections = append(sections, "## Skills\n\n"+summary)
			}
		}
	}

	return strings.Join(sections, sectionSeparator), nil
}

func (b *Builder) identitySection() string {
	return "You are robun, an AI assistant.\n" +
		"Current time (UTC): " + time.Now().UTC().Format(time.RFC3339) + "\n" +
		"OS: " + runtime.GOOS + "/" + runtime.GOARCH + "\n" +
		"Workspace: " + b.Workspace
}

func (b *Builder) readWorkspaceFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(b.Workspace, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func (b *Builder) buildUserMessage(content string, mediaPaths []string) providers.Message {
	if len(mediaPaths) == 0 {
		return providers.Message{Role: "user", Content: content}
	}

	parts := []providers.ContentPart{{Type: "text", Text: content}}
	for _, p := range mediaPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		mime := mimeByExt[strings.ToLower(filepath.Ext(p))]
		if mime == "" {
			mime = "image/png"
		}
		dataURI := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
		parts = append(parts, providers.ContentPart{Type: "image_url", ImageURL: dataURI})
	}
	return providers.Message{Role: "user", Parts: parts}
}

// HistoryWindow returns the last n messages of a transcript, or the whole
// transcript when it is shorter than n.
func HistoryWindow(messages []session.Message, n int) []session.Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
