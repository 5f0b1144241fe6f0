package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AGENTS.md")
	if err := os.WriteFile(path, []byte("Hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := &ReadFileTool{Workspace: dir, Restrict: true}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"path": path})
	if err != nil || got != "Hi" {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestReadFileToolOutsideWorkspaceRejected(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	os.WriteFile(outsideFile, []byte("nope"), 0o644)

	tool := &ReadFileTool{Workspace: dir, Restrict: true}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"path": outsideFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Error: ") {
		t.Fatalf("expected an Error: string, got %q", got)
	}
}

func TestWriteFileToolCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	tool := &WriteFileTool{Workspace: dir, Restrict: true}
	target := filepath.Join(dir, "nested", "deep", "file.txt")
	got, err := tool.Execute(context.Background(), map[string]interface{}{"path": target, "content": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "5 bytes") {
		t.Fatalf("expected byte count in result, got %q", got)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "hello" {
		t.Fatalf("file not written correctly: %v %q", err, data)
	}
}

func TestEditFileToolNoMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("abc"), 0o644)
	tool := &EditFileTool{Workspace: dir, Restrict: true}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"path": path, "old_text": "xyz", "new_text": "q"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "not found") {
		t.Fatalf("expected not-found error, got %q", got)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "abc" {
		t.Fatalf("file should be unchanged, got %q", data)
	}
}

func TestEditFileToolMultipleMatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("aa bb aa"), 0o644)
	tool := &EditFileTool{Workspace: dir, Restrict: true}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"path": path, "old_text": "aa", "new_text": "cc"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "appears 2 times") {
		t.Fatalf("expected 'appears 2 times' in result, got %q", got)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "aa bb aa" {
		t.Fatalf("file must be byte-identical after a no-op edit, got %q", data)
	}
}

func TestEditFileToolSingleMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("aa bb cc"), 0o644)
	tool := &EditFileTool{Workspace: dir, Restrict: true}
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": path, "old_text": "bb", "new_text": "ZZ"})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "aa ZZ cc" {
		t.Fatalf("expected replacement, got %q", data)
	}
}

func TestListDirToolSortedDeterministic(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "zeta"), 0o755)
	os.WriteFile(filepath.Join(dir, "alpha.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "beta"), 0o755)

	tool := &ListDirTool{Workspace: dir, Restrict: true}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"path": dir})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(got, "\n")
	want := []string{"[file] alpha.txt", "[dir]  beta", "[dir]  zeta"}
	if len(lines) != len(want) {
		t.Fatalf("got %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("got %v, want %v", lines, want)
		}
	}
}
