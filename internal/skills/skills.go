// Package skills discovers and loads markdown skill files from a workspace's
// skills directory, mirroring the way bootstrap files are loaded: plain
// files on disk, no database, no registry service.
package skills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

// Skill is one self-contained capability description discoverable under
// {workspace}/skills/{name}/SKILL.md.
type Skill struct {
	Name        string
	Description string
	Always      bool
	Location    string // path relative to the workspace root
	Body        string
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Always      bool   `yaml:"always"`
}

type cacheEntry struct {
	modTime time.Time
	skills  []Skill
}

// Loader discovers skills under a workspace's skills/ directory. Every
// agent turn calls Load, so results are cached keyed by the mtime of the
// skills directory itself: a reload re-parses only when an entry directly
// under skills/ is added, removed or renamed. Editing an existing SKILL.md
// in place does not change that mtime and is not picked up from the cache.
type Loader struct {
	workspace string
	cache     *lru.Cache[string, cacheEntry]
}

func NewLoader(workspace string) *Loader {
	cache, _ := lru.New[string, cacheEntry](32)
	return &Loader{workspace: workspace, cache: cache}
}

// Load scans {workspace}/skills/*/SKILL.md and returns every skill found.
// A skill directory with a malformed SKILL.md is logged and skipped rather
// than failing the whole load.
func (l *Loader) Load() ([]Skill, error) {
	root := filepath.Join(l.workspace, "skills")

	info, statErr := os.Stat(root)
	if statErr == nil && l.cache != nil {
		if entry, ok := l.cache.Get(root); ok && entry.modTime.Equal(info.ModTime()) {
			return entry.skills, nil
		}
	}

	skills, err := l.load(root)
	if err == nil && statErr == nil && l.cache != nil {
		l.cache.Add(root, cacheEntry{modTime: info.ModTime(), skills: skills})
	}
	return skills, err
}

func (l *Loader) load(root string) ([]Skill, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("skills: read %s: %w", root, err)
	}

	var out []Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name(), "SKILL.md")
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("skills: failed to read skill", "dir", e.Name(), "error", err)
			}
			continue
		}
		skill, err := parseSkill(raw, e.Name())
		if err != nil {
			slog.Warn("skills: failed to parse skill", "dir", e.Name(), "error", err)
			continue
		}
		skill.Location = filepath.Join("skills", e.Name(), "SKILL.md")
		out = append(out, skill)
	}
	return out, nil
}

func parseSkill(raw []byte, dirName string) (Skill, error) {
	content := string(raw)
	fm := frontmatter{Name: dirName}
	body := content

	if strings.HasPrefix(content, "---\n") {
		rest := content[4:]
		if idx := strings.Index(rest, "\n---"); idx >= 0 {
			header := rest[:idx]
			if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
				return Skill{}, fmt.Errorf("frontmatter: %w", err)
			}
			after := rest[idx+4:]
			body = strings.TrimPrefix(after, "\n")
		}
	}
	if fm.Name == "" {
		fm.Name = dirName
	}
	return Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Always:      fm.Always,
		Body:        strings.TrimSpace(body),
	}, nil
}
