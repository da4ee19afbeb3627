package avatar

import (
	"math"
	"sync"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// Default tuning. These are per-tick amounts for the fixed 60 Hz simulation
// step.
const (
	DefaultSpeed     = 1.5
	DefaultJumpPower = 2.0
	DefaultGravity   = 0.1

	// yawStep is the fixed per-tick turn increment in radians.
	yawStep = 0.05
)

// Input is one tick's worth of held movement keys. The caller samples and
// sanitizes input; Advance never fails.
type Input struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Jump     bool // doubles as fly-up while flying
	Descend  bool // fly-down, ignored when grounded
}

// State is a snapshot of the avatar at a tick boundary.
type State struct {
	Position  entity.Vec3
	Yaw       float64 // radians around the Y axis
	VelocityY float64
	Airborne  bool

	Flying  bool
	Frozen  bool
	Visible bool
	Glowing bool

	Speed     float64
	JumpPower float64
	Gravity   float64
	Scale     float64
}

// Controller owns one session's avatar. The simulation loop is the only
// caller of Advance; command effects arrive through the setters. Both run on
// the session tick goroutine, the lock covers gateway snapshot readers.
type Controller struct {
	mu sync.RWMutex
	st State
}

// NewController returns a controller with the session-start state: at the
// origin, grounded, visible, default tuning.
func NewController() *Controller {
	return &Controller{st: State{
		Visible:   true,
		Speed:     DefaultSpeed,
		JumpPower: DefaultJumpPower,
		Gravity:   DefaultGravity,
		Scale:     1,
	}}
}

// State returns a snapshot of the current avatar state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st
}

// Advance applies one fixed simulation tick. A frozen avatar keeps its
// position, yaw and velocity; mode flags can still change through setters.
func (c *Controller) Advance(in Input) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.Frozen {
		return c.st
	}

	if in.Left {
		c.st.Yaw += yawStep
	}
	if in.Right {
		c.st.Yaw -= yawStep
	}

	// Forward is the avatar's facing on the XZ plane.
	fx, fz := -math.Sin(c.st.Yaw), -math.Cos(c.st.Yaw)
	if in.Forward {
		c.st.Position.X += fx * c.st.Speed
		c.st.Position.Z += fz * c.st.Speed
	}
	if in.Backward {
		c.st.Position.X -= fx * c.st.Speed
		c.st.Position.Z -= fz * c.st.Speed
	}

	if c.st.Flying {
		if in.Jump {
			c.st.Position.Y += c.st.Speed
		}
		if in.Descend {
			c.st.Position.Y -= c.st.Speed
		}
		// Flight never accumulates fall speed; leaving flight starts the
		// drop from zero.
		c.st.VelocityY = 0
		return c.st
	}

	if in.Jump && !c.st.Airborne {
		c.st.VelocityY = c.st.JumpPower
		c.st.Airborne = true
	}
	c.st.Position.Y += c.st.VelocityY
	if c.st.Position.Y > 0 {
		c.st.VelocityY -= c.st.Gravity
	} else {
		c.st.Position.Y = 0
		c.st.VelocityY = 0
		c.st.Airborne = false
	}
	return c.st
}

// SetSpeed sets the per-tick movement speed.
func (c *Controller) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Speed = speed
}

// SetJumpPower sets the initial jump velocity.
func (c *Controller) SetJumpPower(power float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.JumpPower = power
}

// SetFlying toggles flight mode.
func (c *Controller) SetFlying(flying bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Flying = flying
}

// SetFrozen toggles the frozen flag. Freezing does not reset velocity; an
// unfrozen mid-air avatar resumes its fall.
func (c *Controller) SetFrozen(frozen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Frozen = frozen
}

// SetVisible toggles avatar visibility (rendering only).
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Visible = visible
}

// SetGlowing toggles the emissive highlight (rendering only).
func (c *Controller) SetGlowing(glowing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Glowing = glowing
}

// SetScale sets a uniform avatar scale. Non-positive values are ignored,
// reporting false.
func (c *Controller) SetScale(scale float64) bool {
	if scale <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Scale = scale
	return true
}

// Teleport moves the avatar to the given position, dropping any vertical
// velocity.
func (c *Controller) Teleport(pos entity.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Position = pos
	c.st.VelocityY = 0
	c.st.Airborne = pos.Y > 0
}

// Reset returns the avatar to the origin, keeping tuning and flags.
func (c *Controller) Reset() {
	c.Teleport(entity.Vec3{})
}
