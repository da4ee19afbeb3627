package scene

import (
	"fmt"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// StarterScene returns the default editor scene: a glass ocean slab with a
// small island and one character standing on it.
func StarterScene() []entity.Entity {
	specs := []struct {
		kind     entity.Kind
		name     string
		pos      entity.Vec3
		scale    entity.Vec3
		color    string
		material entity.Material
	}{
		{entity.KindBox, "Ocean", entity.Vec3{Y: -1}, entity.Vec3{X: 200, Y: 1, Z: 200}, "#1a4e66", entity.MaterialGlass},
		{entity.KindBox, "IslandSand", entity.Vec3{X: 10, Z: 10}, entity.Vec3{X: 30, Y: 2, Z: 30}, "#d2b48c", entity.MaterialGrass},
		{entity.KindBox, "IslandGrass", entity.Vec3{X: 10, Y: 1, Z: 10}, entity.Vec3{X: 28, Y: 1, Z: 28}, "#355e3b", entity.MaterialGrass},
		{entity.KindCharacter, "Island Dealer", entity.Vec3{X: 10, Y: 4, Z: 10}, entity.Vec3{X: 1, Y: 1, Z: 1}, "#ffcc00", entity.MaterialPlastic},
	}

	out := make([]entity.Entity, 0, len(specs))
	for _, s := range specs {
		e, err := entity.New(s.kind, s.name, s.pos, s.scale, s.color, s.material)
		if err != nil {
			// Starter specs are positive-scale by construction.
			panic(err)
		}
		out = append(out, e)
	}
	return out
}

// Spawn creates a primitive with the editor's defaults (hovering above the
// origin, 4x4x4, plastic) and appends it to the store. The name carries a
// running number, Sphere_7 style.
func Spawn(store *Store, kind entity.Kind, color string) (entity.Entity, error) {
	if color == "" {
		color = "#888888"
	}
	name := fmt.Sprintf("%s_%d", titleKind(kind), store.Len()+1)
	e, err := entity.New(kind, name, entity.Vec3{Y: 5}, entity.Vec3{X: 4, Y: 4, Z: 4}, color, entity.MaterialPlastic)
	if err != nil {
		return entity.Entity{}, err
	}
	if err := store.Add(e); err != nil {
		return entity.Entity{}, err
	}
	store.Select(e.ID)
	return e, nil
}

func titleKind(k entity.Kind) string {
	s := string(k)
	if s == "" {
		return "Part"
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
