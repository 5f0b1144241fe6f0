package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func stringSchema(desc string, props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

// workspaceGuard resolves path against workspace and, when restrict is set,
// rejects anything that escapes the workspace root.
func workspaceGuard(workspace, path string, restrict bool) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workspace, abs)
	}
	abs = filepath.Clean(abs)
	if !restrict {
		return abs, nil
	}
	root := filepath.Clean(workspace)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return abs, nil
}

// ReadFileTool reads file contents.
type ReadFileTool struct {
	Workspace string
	Restrict  bool
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file" }
func (t *ReadFileTool) Schema() map[string]interface{} {
	return stringSchema("read_file", map[string]interface{}{"path": prop("Path to the file to read")}, "path")
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := workspaceGuard(t.Workspace, path, t.Restrict)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: %q is a directory, not a file", path), nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return string(data), nil
}

// WriteFileTool creates parent directories and writes content.
type WriteFileTool struct {
	Workspace string
	Restrict  bool
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write content to a file, creating parent directories as needed" }
func (t *WriteFileTool) Schema() map[string]interface{} {
	return stringSchema("write_file", map[string]interface{}{
		"path":    prop("Path to the file to write"),
		"content": prop("Content to write"),
	}, "path", "content")
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := workspaceGuard(t.Workspace, path, t.Restrict)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "Error: " + err.Error(), nil
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "Error: " + err.Error(), nil
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// EditFileTool performs an exact single-occurrence string replacement.
type EditFileTool struct {
	Workspace string
	Restrict  bool
}

func (t *EditFileTool) Name() string        { return "edit_file" }
func (t *EditFileTool) Description() string { return "Replace an exact, unique occurrence of text in a file" }
func (t *EditFileTool) Schema() map[string]interface{} {
	return stringSchema("edit_file", map[string]interface{}{
		"path":     prop("Path to the file to edit"),
		"old_text": prop("Exact text to find, must occur exactly once"),
		"new_text": prop("Replacement text"),
	}, "path", "old_text", "new_text")
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	oldText, _ := args["old_text"].(string)
	newText, _ := args["new_text"].(string)
	if path == "" || oldText == "" {
		return "", fmt.Errorf("path and old_text are required")
	}
	abs, err := workspaceGuard(t.Workspace, path, t.Restrict)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	content := string(data)
	count := strings.Count(content, oldText)
	switch {
	case count == 0:
		return fmt.Sprintf("Error: old_text not found in %s", path), nil
	case count > 1:
		return fmt.Sprintf("Warning: old_text appears %d times in %s, no changes made", count, path), nil
	}
	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return "Error: " + err.Error(), nil
	}
	return fmt.Sprintf("Edited %s", path), nil
}

// ListDirTool returns a sorted, typed directory listing.
type ListDirTool struct {
	Workspace string
	Restrict  bool
}

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the contents of a directory" }
func (t *ListDirTool) Schema() map[string]interface{} {
	return stringSchema("list_dir", map[string]interface{}{"path": prop("Directory to list")}, "path")
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	abs, err := workspaceGuard(t.Workspace, path, t.Restrict)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	names := make([]string, 0, len(entries))
	byName := map[string]os.DirEntry{}
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		e := byName[name]
		if e.IsDir() {
			b.WriteString("[dir]  " + name + "\n")
		} else {
			b.WriteString("[file] " + name + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
