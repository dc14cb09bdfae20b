package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cachet-ai/cachet/internal/chat"
)

const currentFile = "current.json"

// DefaultKeep is the number of archived conversations retained.
const DefaultKeep = 10

// JSONDir stores conversations as JSON files in a directory. The active
// conversation is current.json; archives are <id>.json in an archive
// subdirectory.
type JSONDir struct {
	dir  string
	keep int
}

var _ Store = (*JSONDir)(nil)

// NewJSONDir creates the store rooted at dir. keep bounds the archive
// count; values below 1 fall back to DefaultKeep.
func NewJSONDir(dir string, keep int) (*JSONDir, error) {
	if keep < 1 {
		keep = DefaultKeep
	}
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &JSONDir{dir: dir, keep: keep}, nil
}

func (s *JSONDir) SaveCurrent(c *chat.Conversation) error {
	return writeJSON(filepath.Join(s.dir, currentFile), c)
}

func (s *JSONDir) LoadCurrent() (*chat.Conversation, error) {
	return readJSON(filepath.Join(s.dir, currentFile))
}

func (s *JSONDir) Archive(c *chat.Conversation) error {
	if err := writeJSON(s.archivePath(c.ID), c); err != nil {
		return err
	}
	return s.evict()
}

func (s *JSONDir) Load(id string) (*chat.Conversation, error) {
	path := s.archivePath(id)
	if _, err := os.Stat(path); err != nil {
		resolved, rerr := s.resolvePrefix(id)
		if rerr != nil {
			return nil, rerr
		}
		path = s.archivePath(resolved)
	}
	return readJSON(path)
}

func (s *JSONDir) List() ([]Info, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "archive"))
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		c, err := readJSON(filepath.Join(s.dir, "archive", e.Name()))
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:       c.ID,
			Title:    c.Title,
			Model:    c.Model,
			Messages: len(c.Messages),
			SavedAt:  fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SavedAt.After(infos[j].SavedAt) })
	return infos, nil
}

func (s *JSONDir) Delete(id string) error {
	path := s.archivePath(id)
	if _, err := os.Stat(path); err != nil {
		resolved, rerr := s.resolvePrefix(id)
		if rerr != nil {
			return rerr
		}
		path = s.archivePath(resolved)
	}
	return os.Remove(path)
}

func (s *JSONDir) archivePath(id string) string {
	return filepath.Join(s.dir, "archive", id+".json")
}

// resolvePrefix matches an ID prefix against archived conversations.
// Ambiguous prefixes are an error rather than a guess.
func (s *JSONDir) resolvePrefix(prefix string) (string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "archive"))
	if err != nil {
		return "", ErrNotFound
	}
	var match string
	for _, e := range entries {
		id := strings.TrimSuffix(e.Name(), ".json")
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("ambiguous conversation id %q", prefix)
		}
		match = id
	}
	if match == "" {
		return "", ErrNotFound
	}
	return match, nil
}

// evict removes the oldest archives beyond the retention limit.
func (s *JSONDir) evict() error {
	infos, err := s.List()
	if err != nil {
		return err
	}
	for _, old := range infos[min(s.keep, len(infos)):] {
		if err := os.Remove(s.archivePath(old.ID)); err != nil {
			return fmt.Errorf("evict archive %s: %w", old.ID, err)
		}
	}
	return nil
}

func writeJSON(path string, c *chat.Conversation) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string) (*chat.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	var c chat.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &c, nil
}
