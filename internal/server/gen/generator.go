// Package gen is the boundary to the external scene-generation service.
// The core never trusts what comes back: every candidate entity is
// validated before it may reach a scene store.
package gen

import (
	"context"
	"errors"
	"fmt"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// ErrGenerationFailed is returned when the collaborator fails or produces
// nothing usable. Callers keep the previous scene untouched.
var ErrGenerationFailed = errors.New("gen: scene generation failed")

// Generator synthesizes scenes. GenerateScene builds from a freeform prompt
// against the existing scene; RemakeWorld reconstructs a named experience
// from scratch.
type Generator interface {
	GenerateScene(ctx context.Context, prompt string, existing []entity.Entity) ([]entity.Entity, error)
	RemakeWorld(ctx context.Context, title string) ([]entity.Entity, error)
}

// ValidateCandidates filters generator output through the entity invariants,
// reassigning ids so generated scenes can never collide with live ones.
// Invalid candidates are dropped; zero survivors is a generation failure.
func ValidateCandidates(candidates []entity.Entity) ([]entity.Entity, int, error) {
	valid := make([]entity.Entity, 0, len(candidates))
	dropped := 0
	for _, e := range candidates {
		e = e.Reidentify()
		if err := e.Validate(); err != nil {
			dropped++
			continue
		}
		valid = append(valid, e)
	}
	if len(valid) == 0 {
		return nil, dropped, fmt.Errorf("%w: no valid entities among %d candidates", ErrGenerationFailed, len(candidates))
	}
	return valid, dropped, nil
}
