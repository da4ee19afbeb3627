// Package storage handles file-based persistence of project documents.
// Projects are kept as .jrblx files under a single directory; writes are
// atomic so a crash never leaves a half-written project behind.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/OCharnyshevich/jrblx-server/internal/server/scene"
)

const projectExt = ".jrblx"

// Storage is a directory of saved projects.
type Storage struct {
	dir string
	log *logrus.Entry
}

// New creates a Storage rooted at dir, creating it as needed.
func New(dir string, log *logrus.Entry) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	return &Storage{dir: dir, log: log}, nil
}

// SaveProject persists a project document under its name.
func (s *Storage) SaveProject(doc scene.Project) error {
	name := slug(doc.ProjectName)
	if name == "" {
		return fmt.Errorf("save project: empty name")
	}
	path := filepath.Join(s.dir, name+projectExt)
	if err := s.atomicWriteJSON(path, doc); err != nil {
		return fmt.Errorf("save project %q: %w", doc.ProjectName, err)
	}
	s.log.WithFields(logrus.Fields{
		"project":   doc.ProjectName,
		"instances": len(doc.Instances),
	}).Info("project saved")
	return nil
}

// LoadProject reads a saved project by name.
func (s *Storage) LoadProject(name string) (scene.Project, error) {
	path := filepath.Join(s.dir, slug(name)+projectExt)
	f, err := os.Open(path)
	if err != nil {
		return scene.Project{}, fmt.Errorf("load project %q: %w", name, err)
	}
	defer f.Close()
	doc, err := scene.Decode(f)
	if err != nil {
		return scene.Project{}, fmt.Errorf("load project %q: %w", name, err)
	}
	return doc, nil
}

// ListProjects returns the names of all saved projects, sorted.
func (s *Storage) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), projectExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), projectExt))
	}
	sort.Strings(names)
	return names, nil
}

// slug maps a project name onto a safe file stem.
func slug(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// atomicWriteJSON marshals v to JSON and writes it atomically using a temp
// file + rename.
func (s *Storage) atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
