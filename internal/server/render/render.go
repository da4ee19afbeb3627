// Package render derives what the external renderer must draw from the
// scene and avatar state. It owns no pixels: the Renderer boundary receives
// a Frame per tick and rasterizes it however it likes.
package render

import (
	"github.com/OCharnyshevich/jrblx-server/internal/server/avatar"
	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// Geometry is the base mesh family a draw item uses.
type Geometry string

const (
	GeometryBox      Geometry = "box"
	GeometrySphere   Geometry = "sphere"
	GeometryCylinder Geometry = "cylinder"
	GeometryWedge    Geometry = "wedge"
	GeometryFigure   Geometry = "figure" // blocky character model
)

// Surface is the material-derived shading for one draw item.
type Surface struct {
	Color             string  `json:"color"`
	Emissive          bool    `json:"emissive,omitempty"`
	EmissiveColor     string  `json:"emissiveColor,omitempty"`
	EmissiveIntensity float64 `json:"emissiveIntensity,omitempty"`
	Opacity           float64 `json:"opacity"`
	Metalness         float64 `json:"metalness"`
}

// DrawItem is one renderable instance.
type DrawItem struct {
	ID       string       `json:"id"`
	Geometry Geometry     `json:"geometry"`
	Position entity.Vec3  `json:"position"`
	Scale    entity.Vec3  `json:"scale"`
	Rotation *entity.Vec3 `json:"rotation,omitempty"`
	Surface  Surface      `json:"surface"`
}

// Camera is the derived view transform for one frame.
type Camera struct {
	Position entity.Vec3 `json:"position"`
	LookAt   entity.Vec3 `json:"lookAt"`
}

// AvatarView is the avatar's renderable state.
type AvatarView struct {
	Position entity.Vec3 `json:"position"`
	Yaw      float64     `json:"yaw"`
	Scale    float64     `json:"scale"`
	Visible  bool        `json:"visible"`
	Glowing  bool        `json:"glowing"`
}

// Frame is everything the renderer needs for one tick.
type Frame struct {
	Tick   uint64     `json:"tick"`
	Camera Camera     `json:"camera"`
	Avatar AvatarView `json:"avatar"`
	Draws  []DrawItem `json:"draws"`
}

// Renderer consumes frames. Submit must not block the simulation loop for
// long; slow consumers should drop frames on their side.
type Renderer interface {
	Submit(Frame)
}

// GeometryFor maps an entity kind to its base geometry. Unknown or
// non-volumetric kinds fall back to a box so future documents stay visible.
func GeometryFor(kind entity.Kind) Geometry {
	switch kind {
	case entity.KindSphere:
		return GeometrySphere
	case entity.KindCylinder:
		return GeometryCylinder
	case entity.KindWedge:
		return GeometryWedge
	case entity.KindCharacter, entity.KindNPC:
		return GeometryFigure
	default:
		return GeometryBox
	}
}

// SurfaceFor derives shading from a material and base color: neon glows,
// glass is half transparent, metal is reflective, everything else is matte
// and opaque.
func SurfaceFor(material entity.Material, color string) Surface {
	s := Surface{Color: color, Opacity: 1, Metalness: 0.1}
	switch material {
	case entity.MaterialNeon:
		s.Emissive = true
		s.EmissiveColor = color
		s.EmissiveIntensity = 1.5
	case entity.MaterialGlass:
		s.Opacity = 0.5
	case entity.MaterialMetal, entity.MaterialDiamondPlate:
		s.Metalness = 0.9
	}
	return s
}

// BuildDrawList converts entities to draw items, keeping order.
func BuildDrawList(entities []entity.Entity) []DrawItem {
	items := make([]DrawItem, 0, len(entities))
	for _, e := range entities {
		items = append(items, DrawItem{
			ID:       e.ID,
			Geometry: GeometryFor(e.Kind),
			Position: e.Position,
			Scale:    e.Scale,
			Rotation: e.Rotation,
			Surface:  SurfaceFor(e.Material, e.Color),
		})
	}
	return items
}

// AvatarViewOf projects controller state to its renderable slice.
func AvatarViewOf(st avatar.State) AvatarView {
	return AvatarView{
		Position: st.Position,
		Yaw:      st.Yaw,
		Scale:    st.Scale,
		Visible:  st.Visible,
		Glowing:  st.Glowing,
	}
}
