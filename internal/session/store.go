package session

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// reservedChars are replaced with "_" when mapping a session key to a file
// name. Note the latent collision: "telegram:123" and "telegram_123" land
// on the same file.
var reservedChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", "\"", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_",
)

func safeFilename(key string) string {
	return reservedChars.Replace(key) + ".jsonl"
}

// Store is the durable, cached session store. It is accessed only from the
// single Agent Loop consumer goroutine and the background consolidation
// task it spawns; no internal locking beyond the cache map is required, but
// the map itself is guarded since consolidation runs concurrently.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Session

	// Mirror, if set, is called with a point-in-time snapshot of the
	// session after every successful Save. The JSONL file remains the
	// source of truth; Mirror exists to keep an optional durable copy
	// (internal/store/pg.SessionMirror) in sync for operators who run a
	// Postgres sidecar. Failures are logged, never returned from Save.
	Mirror func(*Session)
}

// NewStore creates a store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, cache: make(map[string]*Session)}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, safeFilename(key))
}

// GetOrCreate returns the cached Session for key, loading it from disk on a
// cache miss, or creating a fresh Session if no file exists.
func (s *Store) GetOrCreate(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.cache[key]; ok {
		return sess
	}

	sess, err := s.load(key)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("session: load failed, starting fresh", "key", key, "error", err)
		}
		now := time.Now()
		sess = &Session{Key: key, CreatedAt: now, UpdatedAt: now}
	}
	s.cache[key] = sess
	return sess
}

// load parses the JSONL file, tolerating malformed lines by skipping them.
func (s *Store) load(key string) (*Session, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sess := &Session{Key: key}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			var meta metadataRecord
			if err := json.Unmarshal(line, &meta); err == nil && meta.Type == "metadata" {
				sess.CreatedAt = meta.CreatedAt
				sess.UpdatedAt = meta.UpdatedAt
				sess.Metadata = meta.Metadata
				sess.LastConsolidated = meta.LastConsolidated
				continue
			}
			// No metadata line present; fall through and treat this line as a message.
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue // tolerate malformed lines
		}
		sess.Messages = append(sess.Messages, msg)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	return sess, nil
}

// Save performs a full rewrite of the session's file: metadata line then
// one line per message. Atomic write: temp file → rename, so a crash
// mid-write leaves the previous file intact.
func (s *Store) Save(sess *Session) error {
	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	meta := metadataRecord{
		Type:             "metadata",
		CreatedAt:        sess.CreatedAt,
		UpdatedAt:        sess.UpdatedAt,
		Metadata:         sess.Metadata,
		LastConsolidated: sess.LastConsolidated,
	}
	if err := writeJSONLine(w, meta); err != nil {
		tmp.Close()
		return err
	}
	for _, msg := range sess.Messages {
		if err := writeJSONLine(w, msg); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path(sess.Key)); err != nil {
		return err
	}
	cleanup = false

	if s.Mirror != nil {
		go s.Mirror(cloneSession(sess))
	}
	return nil
}

// cloneSession snapshots the message slice so the mirror goroutine never
// races a concurrent append to the live Session.
func cloneSession(sess *Session) *Session {
	clone := *sess
	clone.Messages = append([]Message(nil), sess.Messages...)
	return &clone
}

func writeJSONLine(w *bufio.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// Invalidate drops the cache entry for key (used by /new).
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
}

// ListSessions enumerates .jsonl files under the store directory.
func (s *Store) ListSessions() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".jsonl")
		sess, err := s.load(key)
		if err != nil {
			continue
		}
		infos = append(infos, Info{Key: key, MessageCount: len(sess.Messages), UpdatedAt: sess.UpdatedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
