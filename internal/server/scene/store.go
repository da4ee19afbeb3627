package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// ErrDuplicateID signals a store invariant violation. Entity ids are
// process-unique by construction, so hitting this means an id-generation
// bug: callers should log it as a defect, not show it to the user.
var ErrDuplicateID = errors.New("scene: entity id already present")

// Store is the authoritative in-memory entity collection for one session or
// editor. Insertion order is preserved and is the draw/list order. Every
// mutation bumps a revision counter so the simulation loop can detect
// geometry changes without diffing entities each tick.
type Store struct {
	mu       sync.RWMutex
	order    []string
	byID     map[string]entity.Entity
	selected string
	revision uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]entity.Entity)}
}

// Add appends an entity. It fails with ErrDuplicateID if the id is already
// present; the store is left unchanged in that case.
func (s *Store) Add(e entity.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[e.ID]; exists {
		return fmt.Errorf("add %q: %w", e.ID, ErrDuplicateID)
	}
	s.byID[e.ID] = e
	s.order = append(s.order, e.ID)
	s.revision++
	return nil
}

// Remove deletes the entity with the given id, reporting whether it was
// present. Removing an absent id is a no-op, not an error.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; !exists {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
	s.revision++
	return true
}

// Replace swaps the stored entity with the same id for e, reporting whether
// the id was present. Order and selection are kept.
func (s *Store) Replace(e entity.Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[e.ID]; !exists {
		return false
	}
	s.byID[e.ID] = e
	s.revision++
	return true
}

// ReplaceAll atomically swaps the whole collection. Project load and scene
// generation go through here exclusively, so a reader observes either the
// old scene or the new one, never a mix.
func (s *Store) ReplaceAll(entities []entity.Entity) error {
	byID := make(map[string]entity.Entity, len(entities))
	order := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, exists := byID[e.ID]; exists {
			return fmt.Errorf("replace all, entity %q: %w", e.ID, ErrDuplicateID)
		}
		byID[e.ID] = e
		order = append(order, e.ID)
	}

	s.mu.Lock()
	s.byID = byID
	s.order = order
	s.selected = ""
	s.revision++
	s.mu.Unlock()
	return nil
}

// Get returns the entity with the given id.
func (s *Store) Get(id string) (entity.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

// List returns all entities in insertion order. The slice is a copy.
func (s *Store) List() []entity.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of stored entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Select marks the entity with the given id as the editor selection,
// reporting whether it exists. An empty id clears the selection.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.selected = ""
		return true
	}
	if _, exists := s.byID[id]; !exists {
		return false
	}
	s.selected = id
	return true
}

// Selected returns the currently selected entity, if any.
func (s *Store) Selected() (entity.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return entity.Entity{}, false
	}
	e, ok := s.byID[s.selected]
	return e, ok
}

// Revision returns the mutation counter. It only ever grows.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}
