package pg

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/robun/internal/session"
)

// SessionMirror shadows internal/session.Store's JSONL files into Postgres.
// It is wired as session.Store.Mirror and is always called with a snapshot
// taken after the on-disk Save already succeeded — a mirror failure is
// logged and otherwise swallowed, never surfaced to the agent loop.
type SessionMirror struct {
	db *sql.DB
}

func NewSessionMirror(db *sql.DB) *SessionMirror {
	return &SessionMirror{db: db}
}

// Upsert inserts or updates the mirrored row for sess.Key.
func (m *SessionMirror) Upsert(sess *session.Session) {
	msgsJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		slog.Error("pg: marshal session messages", "key", sess.Key, "error", err)
		return
	}
	metaJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		slog.Error("pg: marshal session metadata", "key", sess.Key, "error", err)
		return
	}

	_, err = m.db.Exec(
		`INSERT INTO sessions (id, session_key, messages, metadata, last_consolidated, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_key) DO UPDATE SET
		   messages = EXCLUDED.messages,
		   metadata = EXCLUDED.metadata,
		   last_consolidated = EXCLUDED.last_consolidated,
		   updated_at = EXCLUDED.updated_at`,
		uuid.Must(uuid.NewV7()), sess.Key, msgsJSON, metaJSON, sess.LastConsolidated, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		slog.Error("pg: mirror session", "key", sess.Key, "error", err)
	}
}

// Delete removes the mirrored row for key. The gateway wires only Upsert;
// session.Store.Invalidate drops the cache entry and leaves the row in place.
func (m *SessionMirror) Delete(key string) {
	if _, err := m.db.Exec(`DELETE FROM sessions WHERE session_key = $1`, key); err != nil {
		slog.Error("pg: delete mirrored session", "key", key, "error", err)
	}
}

// List returns the mirrored session keys and their last-updated time, for
// operators querying Postgres directly rather than walking the JSONL
// directory (e.g. a fleet of gateways sharing one mirror).
func (m *SessionMirror) List() ([]session.Info, error) {
	rows, err := m.db.Query(`SELECT session_key, jsonb_array_length(messages), updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Info
	for rows.Next() {
		var key string
		var count int
		var updated time.Time
		if err := rows.Scan(&key, &count, &updated); err != nil {
			continue
		}
		out = append(out, session.Info{Key: key, MessageCount: count, UpdatedAt: updated})
	}
	return out, rows.Err()
}
