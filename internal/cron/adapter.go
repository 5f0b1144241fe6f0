package cron

import (
	"encoding/json"
	"fmt"
)

// ToolAdapter exposes Service through the string-in/string-out shape the
// cron tool (internal/tools.CronTool) expects, keeping this package free of
// any dependency on the tools package.
type ToolAdapter struct {
	Service *Service
}

// AddJobJSON builds a Job from a tool-call argument map and adds it.
func (a *ToolAdapter) AddJobJSON(args map[string]interface{}) (string, error) {
	job := Job{Name: stringArg(args, "name"), DeleteAfterRun: boolArg(args, "delete_after_run")}
	job.Payload = Payload{
		Message: stringArg(args, "message"),
		Deliver: boolArg(args, "deliver"),
		Channel: stringArg(args, "channel"),
		ChatID:  stringArg(args, "chat_id"),
		Kind:    "agent_turn",
	}

	switch kind := stringArg(args, "schedule_kind"); kind {
	case "at":
		job.Schedule = Schedule{Kind: "at", AtMs: int64Arg(args, "at_ms")}
	case "every":
		job.Schedule = Schedule{Kind: "every", EveryMs: int64Arg(args, "every_ms")}
	case "cron":
		job.Schedule = Schedule{Kind: "cron", Expr: stringArg(args, "cron_expr")}
	default:
		return "", fmt.Errorf("schedule_kind must be one of at, every, cron")
	}

	created, err := a.Service.AddJob(job)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(created)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListJobsJSON returns the job list as a JSON array.
func (a *ToolAdapter) ListJobsJSON(includeDisabled bool) (string, error) {
	data, err := json.Marshal(a.Service.ListJobs(includeDisabled))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RemoveJob deletes a job by id.
func (a *ToolAdapter) RemoveJob(id string) error {
	return a.Service.RemoveJob(id)
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func int64Arg(args map[string]interface{}, key string) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
