package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
	"github.com/OCharnyshevich/jrblx-server/internal/server/scene"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := New(t.TempDir(), logrus.NewEntry(log))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sampleProject(name string) scene.Project {
	return scene.Project{
		ProjectName: name,
		Version:     scene.FormatVersion,
		Instances: []entity.Entity{
			{ID: "a", Kind: entity.KindBox, Name: "Floor", Scale: entity.Vec3{X: 10, Y: 1, Z: 10}},
		},
		GlobalScripts: []string{},
	}
}

func TestSaveAndLoadProject(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SaveProject(sampleProject("My Island")); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	doc, err := s.LoadProject("My Island")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if doc.ProjectName != "My Island" || len(doc.Instances) != 1 {
		t.Errorf("loaded = %+v", doc)
	}

	// Saving again overwrites, never duplicates.
	if err := s.SaveProject(sampleProject("My Island")); err != nil {
		t.Fatal(err)
	}
	names, err := s.ListProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "my-island" {
		t.Errorf("projects = %v", names)
	}
}

func TestLoadMissingProject(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.LoadProject("ghost"); err == nil {
		t.Fatal("missing project loaded")
	}
}

func TestSaveEmptyName(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveProject(scene.Project{Instances: []entity.Entity{}}); err == nil {
		t.Fatal("empty project name accepted")
	}
}

func TestListIgnoresStrays(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveProject(sampleProject("Keep")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := s.ListProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "keep" {
		t.Errorf("projects = %v", names)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"My Island", "my-island"},
		{"  Doors!! 2  ", "doors-2"},
		{"___", ""},
	}
	for _, c := range cases {
		if got := slug(c.in); got != c.want {
			t.Errorf("slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
