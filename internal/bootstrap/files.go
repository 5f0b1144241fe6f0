// Package bootstrap defines the well-known workspace files that shape an
// agent's identity and seeds them into a fresh workspace on first run.
package bootstrap

import (
	"embed"
	"log/slog"
	"os"
	"path/filepath"
)

// Well-known bootstrap file names read from the workspace root by the
// context builder, in the order they are rendered into the system prompt.
const (
	AgentsFile    = "AGENTS.md"
	SoulFile      = "SOUL.md"
	UserFile      = "USER.md"
	ToolsFile     = "TOOLS.md"
	IdentityFile  = "IDENTITY.md"
	HeartbeatFile = "HEARTBEAT.md"
)

// Files lists the bootstrap files in rendering order.
var Files = []string{AgentsFile, SoulFile, UserFile, ToolsFile, IdentityFile}

//go:embed templates/*.md
var templateFS embed.FS

// seedFiles lists the templates seeded into a brand new workspace.
var seedFiles = []string{AgentsFile, SoulFile, UserFile, ToolsFile, IdentityFile, HeartbeatFile}

// EnsureWorkspaceFiles seeds template files into workspaceDir, skipping any
// that already exist. Returns the list of files actually created.
func EnsureWorkspaceFiles(workspaceDir string) ([]string, error) {
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return nil, err
	}
	var created []string
	for _, name := range seedFiles {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			slog.Warn("bootstrap: failed to seed template", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

func seedTemplate(workspaceDir, name string) (bool, error) {
	dstPath := filepath.Join(workspaceDir, name)
	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}
