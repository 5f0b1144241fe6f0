package context

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/robun/internal/memory"
	"github.com/nextlevelbuilder/robun/internal/session"
)

func TestHistoryWindowTruncatesToN(t *testing.T) {
	msgs := make([]session.Message, 10)
	for i := range msgs {
		msgs[i] = session.Message{Role: "user", Content: "x"}
	}
	got := HistoryWindow(msgs, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4, got %d", len(got))
	}
}

func TestHistoryWindowShorterThanN(t *testing.T) {
	msgs := make([]session.Message, 3)
	got := HistoryWindow(msgs, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 (unchanged), got %d", len(got))
	}
}

func TestBuildMessagesIncludesIdentityAndHistoryAndCurrentTurn(t *testing.T) {
	workspace := t.TempDir()
	memStore, err := memory.NewStore(workspace)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(workspace, memStore, nil)

	history := []session.Message{
		{Role: "user", Content: "earlier question", Timestamp: time.Now()},
		{Role: "assistant", Content: "earlier answer", Timestamp: time.Now()},
	}
	messages, err := b.BuildMessages(Turn{History: history, Content: "current question"})
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected system + 2 history + current = 4, got %d", len(messages))
	}
	if messages[0].Role != "system" || !strings.Contains(messages[0].Content, "robun") {
		t.Fatalf("expected identity in system prompt, got %q", messages[0].Content)
	}
	if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
		t.Fatalf("history not carried through in order: %+v", messages[1:3])
	}
	last := messages[len(messages)-1]
	if last.Role != "user" || last.Content != "current question" {
		t.Fatalf("expected current turn last, got %+v", last)
	}
}

func TestBuildMessagesIncludesBootstrapFilesAndMemory(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "AGENTS.md"), []byte("  Be helpful.  "), 0o644); err != nil {
		t.Fatal(err)
	}
	memStore, err := memory.NewStore(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if err := memStore.WriteMemory("User likes dark mode."); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(workspace, memStore, nil)

	messages, err := b.BuildMessages(Turn{Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	sys := messages[0].Content
	if !strings.Contains(sys, "## AGENTS.md") || !strings.Contains(sys, "Be helpful.") {
		t.Fatalf("expected bootstrap file rendered and trimmed, got %q", sys)
	}
	if !strings.Contains(sys, "## Long-term Memory") || !strings.Contains(sys, "User likes dark mode.") {
		t.Fatalf("expected long-term memory section, got %q", sys)
	}
	if !strings.Contains(sys, sectionSeparator) {
		t.Fatalf("expected sections joined by the literal separator")
	}
}

func TestBuildMessagesWithMediaPathsProducesHeterogeneousParts(t *testing.T) {
	workspace := t.TempDir()
	imgPath := filepath.Join(workspace, "photo.png")
	if err := os.WriteFile(imgPath, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644); err != nil {
		t.Fatal(err)
	}
	memStore, _ := memory.NewStore(workspace)
	b := NewBuilder(workspace, memStore, nil)

	messages, err := b.BuildMessages(Turn{Content: "look at this", MediaPaths: []string{imgPath}})
	if err != nil {
		t.Fatal(err)
	}
	last := messages[len(messages)-1]
	if len(last.Parts) != 2 {
		t.Fatalf("expected text+image parts, got %d", len(last.Parts))
	}
	if last.Parts[0].Type != "text" || last.Parts[0].Text != "look at this" {
		t.Fatalf("expected text part first, got %+v", last.Parts[0])
	}
	if last.Parts[1].Type != "image_url" || !strings.HasPrefix(last.Parts[1].ImageURL, "data:image/png;base64,") {
		t.Fatalf("expected image_url data URI with inferred mime, got %+v", last.Parts[1])
	}
}

func TestBuildMessagesSkipsUnreadableMedia(t *testing.T) {
	workspace := t.TempDir()
	memStore, _ := memory.NewStore(workspace)
	b := NewBuilder(workspace, memStore, nil)

	messages, err := b.BuildMessages(Turn{Content: "hi", MediaPaths: []string{filepath.Join(workspace, "missing.jpg")}})
	if err != nil {
		t.Fatal(err)
	}
	last := messages[len(messages)-1]
	if len(last.Parts) != 1 {
		t.Fatalf("expected only the text part for an unreadable file, got %d parts", len(last.Parts))
	}
}
