package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureWorkspaceFilesSeedsAllTemplates(t *testing.T) {
	workspace := t.TempDir()
	created, err := EnsureWorkspaceFiles(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != len(seedFiles) {
		t.Fatalf("expected %d files created, got %d: %v", len(seedFiles), len(created), created)
	}
	for _, name := range seedFiles {
		info, err := os.Stat(filepath.Join(workspace, name))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", name)
		}
	}
}

func TestEnsureWorkspaceFilesSkipsExisting(t *testing.T) {
	workspace := t.TempDir()
	custom := "My custom agents file.\n"
	if err := os.WriteFile(filepath.Join(workspace, AgentsFile), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	created, err := EnsureWorkspaceFiles(workspace)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range created {
		if name == AgentsFile {
			t.Fatal("expected AGENTS.md to be skipped since it already existed")
		}
	}

	content, err := os.ReadFile(filepath.Join(workspace, AgentsFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != custom {
		t.Fatalf("expected existing content preserved, got %q", content)
	}
}

func TestEnsureWorkspaceFilesIsIdempotent(t *testing.T) {
	workspace := t.TempDir()
	if _, err := EnsureWorkspaceFiles(workspace); err != nil {
		t.Fatal(err)
	}
	createdAgain, err := EnsureWorkspaceFiles(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if len(createdAgain) != 0 {
		t.Fatalf("expected no files created on second call, got %v", createdAgain)
	}
}
