package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecBlockedCommand(t *testing.T) {
	tool := &ExecTool{Workspace: t.TempDir(), Restrict: true, Timeout: time.Second}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"command": "rm -rf /"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Error: Command blocked by safety guard") {
		t.Fatalf("expected blocked message, got %q", got)
	}
}

func TestExecBlockedCommandVariants(t *testing.T) {
	tool := &ExecTool{Workspace: t.TempDir(), Restrict: true, Timeout: time.Second}
	cases := []string{
		"rm -f important.txt",
		"del /f file.txt",
		"rmdir /s somedir",
		"format c:",
		"mkfs.ext4 /dev/sda1",
		"dd if=/dev/zero of=/dev/sda",
		"echo oops > /dev/sda",
		"shutdown now",
		"reboot",
		":(){ :|:& };:",
	}
	for _, c := range cases {
		got, err := tool.Execute(context.Background(), map[string]interface{}{"command": c})
		if err != nil {
			t.Fatalf("command %q: unexpected error %v", c, err)
		}
		if !strings.Contains(got, "blocked") {
			t.Fatalf("command %q should be blocked, got %q", c, got)
		}
	}
}

func TestExecPathTraversalBlockedWhenRestricted(t *testing.T) {
	tool := &ExecTool{Workspace: t.TempDir(), Restrict: true, Timeout: time.Second}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"command": "cat ../secret"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "blocked") {
		t.Fatalf("expected traversal to be blocked, got %q", got)
	}
}

func TestExecRunsAllowedCommand(t *testing.T) {
	tool := &ExecTool{Workspace: t.TempDir(), Restrict: true, Timeout: 5 * time.Second}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"command": "echo hello"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestExecCapturesStderrAndExitCode(t *testing.T) {
	tool := &ExecTool{Workspace: t.TempDir(), Restrict: true, Timeout: 5 * time.Second}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"command": "echo oops 1>&2; exit 3"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "STDERR:") || !strings.Contains(got, "oops") {
		t.Fatalf("expected stderr marker, got %q", got)
	}
	if !strings.Contains(got, "Exit code: 3") {
		t.Fatalf("expected exit code, got %q", got)
	}
}

func TestExecTimeout(t *testing.T) {
	tool := &ExecTool{Workspace: t.TempDir(), Restrict: true, Timeout: 50 * time.Millisecond}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"command": "sleep 5"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "timed out") {
		t.Fatalf("expected timeout message, got %q", got)
	}
}

func TestExecOutputTruncation(t *testing.T) {
	tool := &ExecTool{Workspace: t.TempDir(), Restrict: true, Timeout: 5 * time.Second}
	got, err := tool.Execute(context.Background(), map[string]interface{}{"command": "yes x | head -c 20000"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > execOutputLimit+50 {
		t.Fatalf("expected output truncated near %d chars, got %d", execOutputLimit, len(got))
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncation marker, got tail %q", got[len(got)-30:])
	}
}
