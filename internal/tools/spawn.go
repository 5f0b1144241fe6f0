package tools

import (
	"context"
	"fmt"
)

// Spawner is the Sub-agent Manager's capability as seen from the spawn
// tool: fire off an isolated task and return immediately with an
// acknowledgement string carrying the label and task id.
type Spawner interface {
	Spawn(task, label, originChannel, originChatID string) string
}

// SpawnTool delegates to the Sub-agent Manager.
type SpawnTool struct {
	Manager Spawner
}

func (t *SpawnTool) Name() string        { return "spawn" }
func (t *SpawnTool) Description() string { return "Spawn an isolated sub-agent to perform a self-contained task" }
func (t *SpawnTool) Schema() map[string]interface{} {
	return stringSchema("spawn", map[string]interface{}{
		"task":  prop("The self-contained task for the sub-agent to perform"),
		"label": prop("Optional short human-readable label for the task"),
	}, "task")
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	task, _ := args["task"].(string)
	if task == "" {
		return "", fmt.Errorf("task is required")
	}
	label, _ := args["label"].(string)

	tc, ok := TurnContextFrom(ctx)
	if !ok {
		return "Error: no active conversation for this turn", nil
	}
	return t.Manager.Spawn(task, label, tc.Channel, tc.ChatID), nil
}
