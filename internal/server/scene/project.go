package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// FormatVersion is the project document version this build emits.
const FormatVersion = "1.0"

// ErrMalformedProject is returned when a document lacks the instances field
// that makes it recognizable as a project.
var ErrMalformedProject = errors.New("scene: document has no instances")

// Project is the persisted form of a scene (a .jrblx document). Unknown
// top-level and per-entity fields are tolerated on import for forward
// compatibility; exports always carry Version and an Instances array.
type Project struct {
	ProjectName   string          `json:"projectName"`
	Version       string          `json:"version"`
	Instances     []entity.Entity `json:"instances"`
	GlobalScripts []string        `json:"globalScripts"`
}

// ToDocument captures the store's current contents as a project value.
func ToDocument(name string, store *Store) Project {
	return Project{
		ProjectName:   name,
		Version:       FormatVersion,
		Instances:     store.List(),
		GlobalScripts: []string{},
	}
}

// FromDocument extracts the entity sequence from a project document,
// reassigning ids so they stay process-unique. Entities that fail
// validation are dropped and reported; the remainder loads normally.
// Callers are expected to hand the result to Store.ReplaceAll.
func FromDocument(doc Project) (entities []entity.Entity, dropped int, err error) {
	if doc.Instances == nil {
		return nil, 0, fmt.Errorf("project %q: %w", doc.ProjectName, ErrMalformedProject)
	}
	entities = make([]entity.Entity, 0, len(doc.Instances))
	for _, e := range doc.Instances {
		e = e.Reidentify()
		if err := e.Validate(); err != nil {
			dropped++
			continue
		}
		entities = append(entities, e)
	}
	return entities, dropped, nil
}

// Encode writes the project as indented JSON, matching the exported .jrblx
// format.
func Encode(w io.Writer, doc Project) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode project %q: %w", doc.ProjectName, err)
	}
	return nil
}

// Decode parses a project document. JSON that does not parse at all, or
// that parses but carries no instances array, is ErrMalformedProject.
func Decode(r io.Reader) (Project, error) {
	var doc Project
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Project{}, fmt.Errorf("%w: %v", ErrMalformedProject, err)
	}
	if doc.Instances == nil {
		return Project{}, fmt.Errorf("project %q: %w", doc.ProjectName, ErrMalformedProject)
	}
	return doc, nil
}
