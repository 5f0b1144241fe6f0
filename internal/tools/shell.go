package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"
)

const execOutputLimit = 10_000

// defaultDenyPatterns is the shell safety guard: destructive filesystem
// operations and the classic fork bomb, checked against the literal
// command string before anything is handed to the shell.
var defaultDenyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b`),
	regexp.MustCompile(`\bdel\s+/[fq]\b`),
	regexp.MustCompile(`\brmdir\s+/s\b`),
	regexp.MustCompile(`\b(mkfs|diskpart)\b|\bformat\s`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]\b`),
	regexp.MustCompile(`\b(shutdown|reboot|poweroff)\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\};\s*:`),
}

func blockedByPolicy(command string, restrict bool) bool {
	for _, re := range defaultDenyPatterns {
		if re.MatchString(command) {
			return true
		}
	}
	if restrict && (strings.Contains(command, "../") || strings.Contains(command, `..\`)) {
		return true
	}
	return false
}

// ExecTool runs a shell command with a safety-guard blocklist, a hard
// timeout that kills the whole process group, and combined/truncated output.
type ExecTool struct {
	Workspace string
	Restrict  bool
	Timeout   time.Duration
}

func (t *ExecTool) Name() string        { return "exec" }
func (t *ExecTool) Description() string { return "Run a shell command in the workspace" }
func (t *ExecTool) Schema() map[string]interface{} {
	return stringSchema("exec", map[string]interface{}{
		"command":     prop("Shell command to run"),
		"working_dir": prop("Optional working directory, relative to the workspace"),
	}, "command")
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}
	if blockedByPolicy(command, t.Restrict) {
		return "Error: Command blocked by safety guard", nil
	}

	workingDir := t.Workspace
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		resolved, err := workspaceGuard(t.Workspace, wd, t.Restrict)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		workingDir = resolved
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = workingDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "Error: " + err.Error(), nil
	}
	waitErr := cmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd)
		return "Error: command timed out", nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\nSTDERR:\n" + stderr.String()
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			output += fmt.Sprintf("\nExit code: %d", exitErr.ExitCode())
		} else {
			return "Error: " + waitErr.Error(), nil
		}
	}
	if len(output) > execOutputLimit {
		output = output[:execOutputLimit] + "\n[... truncated ...]"
	}
	return output, nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
