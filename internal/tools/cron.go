package tools

import (
	"context"
	"fmt"
)

// CronAdapter is the thin slice of the Cron Service the cron tool needs.
type CronAdapter interface {
	AddJobJSON(payload map[string]interface{}) (string, error)
	ListJobsJSON(includeDisabled bool) (string, error)
	RemoveJob(id string) error
}

// CronTool is a thin adapter over the Cron Service for action in {add, list, remove}.
type CronTool struct {
	Cron CronAdapter
}

func (t *CronTool) Name() string        { return "cron" }
func (t *CronTool) Description() string { return "Manage scheduled jobs: add, list, or remove" }
func (t *CronTool) Schema() map[string]interface{} {
	return stringSchema("cron", map[string]interface{}{
		"action":           prop("One of: add, list, remove"),
		"name":             prop("Job name (add)"),
		"schedule_kind":    prop("One of: at, every, cron (add)"),
		"at_ms":            map[string]interface{}{"type": "integer", "description": "Unix ms to fire once (add, schedule_kind=at)"},
		"every_ms":         map[string]interface{}{"type": "integer", "description": "Interval in ms (add, schedule_kind=every)"},
		"cron_expr":        prop("5-field cron expression (add, schedule_kind=cron)"),
		"message":          prop("Payload message text (add)"),
		"deliver":          map[string]interface{}{"type": "boolean", "description": "Whether to deliver the message (add)"},
		"delete_after_run": map[string]interface{}{"type": "boolean", "description": "Delete this job after it fires once (add, schedule_kind=at)"},
		"channel":          prop("Target channel (add)"),
		"chat_id":          prop("Target chat id (add)"),
		"include_disabled": map[string]interface{}{"type": "boolean", "description": "Include disabled jobs (list)"},
		"id":               prop("Job id (remove)"),
	}, "action")
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	action, _ := args["action"].(string)
	switch action {
	case "add":
		if tc, ok := TurnContextFrom(ctx); ok {
			withDefaults := make(map[string]interface{}, len(args)+2)
			for k, v := range args {
				withDefaults[k] = v
			}
			if s, _ := withDefaults["channel"].(string); s == "" {
				withDefaults["channel"] = tc.Channel
			}
			if s, _ := withDefaults["chat_id"].(string); s == "" {
				withDefaults["chat_id"] = tc.ChatID
			}
			args = withDefaults
		}
		return t.Cron.AddJobJSON(args)
	case "list":
		includeDisabled, _ := args["include_disabled"].(bool)
		return t.Cron.ListJobsJSON(includeDisabled)
	case "remove":
		id, _ := args["id"].(string)
		if id == "" {
			return "", fmt.Errorf("id is required")
		}
		if err := t.Cron.RemoveJob(id); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf(`{"removed":%q}`, id), nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}
