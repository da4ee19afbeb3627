package entity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidGeometry is returned when an entity would end up with a
// non-positive scale component.
var ErrInvalidGeometry = errors.New("entity: scale components must be > 0")

// Kind identifies the base geometry of a placeable object. The set below is
// closed, but unknown values round-trip through the store and the project
// serializer untouched so newer documents stay loadable.
type Kind string

const (
	KindBox           Kind = "box"
	KindSphere        Kind = "sphere"
	KindCylinder      Kind = "cylinder"
	KindWedge         Kind = "wedge"
	KindCharacter     Kind = "character"
	KindNPC           Kind = "npc"
	KindSpawnLocation Kind = "spawnlocation"
	KindTree          Kind = "tree"
	KindLight         Kind = "light"
	KindDecal         Kind = "decal"
)

// Known reports whether k is one of the closed kind set.
func (k Kind) Known() bool {
	switch k {
	case KindBox, KindSphere, KindCylinder, KindWedge, KindCharacter,
		KindNPC, KindSpawnLocation, KindTree, KindLight, KindDecal:
		return true
	}
	return false
}

// Material governs derived rendering attributes (emissive for neon, partial
// transparency for glass). The simulation never inspects it.
type Material string

const (
	MaterialPlastic      Material = "plastic"
	MaterialNeon         Material = "neon"
	MaterialMetal        Material = "metal"
	MaterialWood         Material = "wood"
	MaterialGlass        Material = "glass"
	MaterialGrass        Material = "grass"
	MaterialFabric       Material = "fabric"
	MaterialDiamondPlate Material = "diamondplate"
)

// Vec3 is a world-space vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Positive reports whether every component is > 0.
func (v Vec3) Positive() bool {
	return v.X > 0 && v.Y > 0 && v.Z > 0
}

// Entity is one placeable scene object. It is a plain value: rendering
// attributes are derived from Kind and Material by the render package, and
// Script is carried through without being executed.
type Entity struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"type"`
	Name     string   `json:"name"`
	Position Vec3     `json:"position"`
	Scale    Vec3     `json:"scale"`
	Rotation *Vec3    `json:"rotation,omitempty"` // nil means identity
	Color    string   `json:"color"`
	Material Material `json:"material"`
	Script   string   `json:"script,omitempty"`
}

// New creates an entity with a fresh unique ID. It fails with
// ErrInvalidGeometry if any scale component is not positive.
func New(kind Kind, name string, position, scale Vec3, color string, material Material) (Entity, error) {
	if !scale.Positive() {
		return Entity{}, fmt.Errorf("create %q: %w", name, ErrInvalidGeometry)
	}
	return Entity{
		ID:       uuid.NewString(),
		Kind:     kind,
		Name:     name,
		Position: position,
		Scale:    scale,
		Color:    color,
		Material: material,
	}, nil
}

// WithScale returns a copy of e with the given scale. The receiver is left
// untouched; a non-positive component fails with ErrInvalidGeometry.
func (e Entity) WithScale(scale Vec3) (Entity, error) {
	if !scale.Positive() {
		return Entity{}, fmt.Errorf("rescale %q: %w", e.ID, ErrInvalidGeometry)
	}
	e.Scale = scale
	return e, nil
}

// Validate checks the invariants every stored entity must satisfy. It is the
// gate for externally produced entities (project import, scene generation).
func (e Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entity %q: missing id", e.Name)
	}
	if !e.Scale.Positive() {
		return fmt.Errorf("entity %q: %w", e.ID, ErrInvalidGeometry)
	}
	return nil
}

// Reidentify returns a copy of e with a freshly assigned ID. Project import
// uses it so ids stay process-unique regardless of what a document claims.
func (e Entity) Reidentify() Entity {
	e.ID = uuid.NewString()
	return e
}
