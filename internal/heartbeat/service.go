// Package heartbeat implements the periodic autonomous check-in driven by a
// watched workspace file: every intervalS seconds, and whenever
// HEARTBEAT.md changes on disk, read it and hand actionable content to the
// agent loop.
package heartbeat

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultIntervalS = 1800
const sessionKey = "heartbeat:system"
const prompt = "Read HEARTBEAT.md in your workspace and act on anything that needs attention. " +
	"If nothing needs attention, reply with just: HEARTBEAT_OK"

// Handler is the Agent Loop's processDirect for the fixed "heartbeat:system"
// session.
type Handler func(prompt, sessionKey string) (string, error)

// Service periodically checks HEARTBEAT.md and invokes Handler when it
// contains actionable content.
type Service struct {
	Workspace string
	IntervalS int
	Handler   Handler
	Enabled   bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewService(workspace string, intervalS int, handler Handler) *Service {
	if intervalS <= 0 {
		intervalS = defaultIntervalS
	}
	return &Service{Workspace: workspace, IntervalS: intervalS, Handler: handler, Enabled: true, stopCh: make(chan struct{})}
}

// Run blocks until Stop is called, ticking every IntervalS seconds and also
// waking early on a write to HEARTBEAT.md.
func (s *Service) Run() {
	if !s.Enabled {
		return
	}

	ticker := time.NewTicker(time.Duration(s.IntervalS) * time.Second)
	defer ticker.Stop()

	fileEvents := s.watchFile()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.check()
		case <-fileEvents:
			s.check()
		}
	}
}

// Stop cancels the run loop; a stop before a scheduled tick cancels cleanly.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// watchFile returns a channel that receives (debounced) whenever
// HEARTBEAT.md is written. Failure to start the watcher degrades to
// ticker-only operation, logged once.
func (s *Service) watchFile() <-chan struct{} {
	out := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("heartbeat: failed to start file watcher, falling back to ticker only", "error", err)
		return out
	}
	if err := watcher.Add(s.Workspace); err != nil {
		slog.Warn("heartbeat: failed to watch workspace", "error", err)
		watcher.Close()
		return out
	}

	target := filepath.Join(s.Workspace, "HEARTBEAT.md")
	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case <-s.stopCh:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					select {
					case out <- struct{}{}:
					default:
					}
				})
			case <-watcher.Errors:
				// non-fatal; the ticker still covers this service's responsibility.
			}
		}
	}()
	return out
}

func (s *Service) check() {
	content, err := os.ReadFile(filepath.Join(s.Workspace, "HEARTBEAT.md"))
	if err != nil {
		return // missing file: nothing to do
	}
	if isEmpty(string(content)) {
		return
	}
	if s.Handler == nil {
		return
	}

	reply, err := s.Handler(prompt, sessionKey)
	if err != nil {
		slog.Warn("heartbeat: handler failed", "error", err)
		return
	}
	normalized := strings.ToUpper(strings.ReplaceAll(reply, "_", ""))
	if strings.Contains(normalized, "HEARTBEATOK") {
		return
	}
	slog.Info("heartbeat: completed an autonomous task", "reply", reply)
}

// isEmpty reports whether the file has nothing actionable: every line
// blank, a header, or an HTML comment opener, and no checkbox anywhere.
// Checkboxes count even in an otherwise header-only file.
func isEmpty(content string) bool {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.Contains(line, "- [ ]") || strings.Contains(line, "- [x]") {
			return false
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "<!--") {
			continue
		}
		return false
	}
	return true
}
