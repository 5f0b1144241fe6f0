package pg

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/robun/internal/cron"
)

// CronMirror shadows internal/cron.Service's job store into Postgres. It
// implements cron.MirrorHook; the JSON file at Cron.StorePath remains
// authoritative and is what the service reloads from on restart.
type CronMirror struct {
	db *sql.DB
}

func NewCronMirror(db *sql.DB) *CronMirror {
	return &CronMirror{db: db}
}

// UpsertJob inserts or updates the mirrored row for job.ID.
func (m *CronMirror) UpsertJob(job cron.Job) {
	scheduleJSON, err := json.Marshal(job.Schedule)
	if err != nil {
		slog.Error("pg: marshal job schedule", "id", job.ID, "error", err)
		return
	}
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		slog.Error("pg: marshal job payload", "id", job.ID, "error", err)
		return
	}
	stateJSON, err := json.Marshal(job.State)
	if err != nil {
		slog.Error("pg: marshal job state", "id", job.ID, "error", err)
		return
	}

	id, err := uuid.Parse(job.ID)
	if err != nil {
		// Job IDs are hex(crypto/rand, 4 bytes), not UUIDs — derive a
		// stable v5 UUID so the column stays typed without reshaping the
		// service's own ID scheme.
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(job.ID))
	}

	_, err = m.db.Exec(
		`INSERT INTO cron_jobs (id, job_id, name, enabled, schedule, payload, state, delete_after_run, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (job_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   enabled = EXCLUDED.enabled,
		   schedule = EXCLUDED.schedule,
		   payload = EXCLUDED.payload,
		   state = EXCLUDED.state,
		   delete_after_run = EXCLUDED.delete_after_run,
		   updated_at = EXCLUDED.updated_at`,
		id, job.ID, job.Name, job.Enabled, scheduleJSON, payloadJSON, stateJSON, job.DeleteAfterRun,
		job.CreatedAtMs, job.UpdatedAtMs,
	)
	if err != nil {
		slog.Error("pg: mirror cron job", "id", job.ID, "error", err)
	}
}

// DeleteJob removes the mirrored row for id.
func (m *CronMirror) DeleteJob(id string) {
	if _, err := m.db.Exec(`DELETE FROM cron_jobs WHERE job_id = $1`, id); err != nil {
		slog.Error("pg: delete mirrored cron job", "id", id, "error", err)
	}
}
