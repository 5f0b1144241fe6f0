package memory

import (
	"os"
	"strings"
	"testing"
)

func TestReadMemoryMissingReturnsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got := store.ReadMemory(); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestWriteThenReadMemory(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.WriteMemory("facts go here"); err != nil {
		t.Fatal(err)
	}
	if got := store.ReadMemory(); got != "facts go here" {
		t.Fatalf("got %q", got)
	}
}

func TestAppendHistoryAccumulates(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AppendHistory("[2026-01-01] first entry"); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendHistory("[2026-01-02] second entry"); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(store.historyPath())
	if err != nil {
		t.Fatal(err)
	}
	data := string(raw)
	if !strings.Contains(data, "first entry") || !strings.Contains(data, "second entry") {
		t.Fatalf("expected both entries present, got %q", data)
	}
	if strings.Index(data, "first entry") > strings.Index(data, "second entry") {
		t.Fatalf("expected append order preserved, got %q", data)
	}
}
