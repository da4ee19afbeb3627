// Package session drives one live play session: the fixed-timestep
// simulation loop, the chat command channel, and the transient announcement
// state. A session owns exactly one scene store and one avatar controller;
// all mutation funnels through the tick goroutine, so command effects become
// visible between ticks, never mid-frame.
package session

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/OCharnyshevich/jrblx-server/internal/server/avatar"
	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
	"github.com/OCharnyshevich/jrblx-server/internal/server/gen"
	"github.com/OCharnyshevich/jrblx-server/internal/server/render"
	"github.com/OCharnyshevich/jrblx-server/internal/server/scene"
)

// TickRate is the fixed simulation rate. The movement constants are tuned
// as per-tick amounts, so the loop must hold 60 Hz regardless of wall-clock
// jitter.
const TickRate = 60

// Camera follow tuning: the camera sits behind/above the avatar and eases
// toward that offset a fraction per tick.
const (
	cameraBack   = 50.0
	cameraUp     = 20.0
	cameraLookUp = 6.0
	cameraEase   = 0.15
)

// ChatKind distinguishes player chat from system acknowledgments.
type ChatKind string

const (
	ChatNormal ChatKind = "normal"
	ChatSystem ChatKind = "system"
)

// ChatRecord is one line echoed back to the channel.
type ChatRecord struct {
	Speaker string   `json:"speaker"`
	Text    string   `json:"text"`
	Kind    ChatKind `json:"kind"`
}

// Announcement is the single session-wide broadcast. A new one replaces any
// pending one; it clears itself once the deadline passes.
type Announcement struct {
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sanitizer is the external text-moderation boundary. Passthrough by
// default; deployments plug their filter in here.
type Sanitizer func(string) string

// Key identifies one held movement key.
type Key string

const (
	KeyForward  Key = "forward"
	KeyBackward Key = "backward"
	KeyLeft     Key = "left"
	KeyRight    Key = "right"
	KeyJump     Key = "jump"
	KeyDescend  Key = "descend"
)

// Config carries the session collaborators. Renderer and Generator may be
// nil (headless simulation, generation disabled).
type Config struct {
	Player    string
	Store     *scene.Store
	Renderer  render.Renderer
	Generator gen.Generator
	Sanitize  Sanitizer
	Log       *logrus.Entry
}

// Session is one live play session.
type Session struct {
	ID     string
	player string

	log      *logrus.Entry
	store    *scene.Store
	ctrl     *avatar.Controller
	renderer render.Renderer
	genr     gen.Generator
	sanitize Sanitizer

	now func() time.Time // swapped in tests

	keysMu sync.Mutex
	keys   map[Key]bool

	// pending holds raw chat lines staged between the channel handlers and
	// the tick goroutine, applied in order at the next tick.
	pendingMu sync.Mutex
	pending   []string

	chat chan ChatRecord

	annMu sync.Mutex
	ann   *Announcement

	tick         uint64
	lastRevision uint64
	draws        []render.DrawItem
	cam          entity.Vec3

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a session over the given collaborators.
func New(cfg Config) *Session {
	if cfg.Store == nil {
		cfg.Store = scene.NewStore()
	}
	if cfg.Sanitize == nil {
		cfg.Sanitize = func(s string) string { return s }
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.New())
	}
	if cfg.Player == "" {
		cfg.Player = "Me"
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       uuid.NewString(),
		player:   cfg.Player,
		store:    cfg.Store,
		ctrl:     avatar.NewController(),
		renderer: cfg.Renderer,
		genr:     cfg.Generator,
		sanitize: cfg.Sanitize,
		now:      time.Now,
		keys:     make(map[Key]bool),
		chat:     make(chan ChatRecord, 256),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.log = cfg.Log.WithField("session", s.ID)
	// lastRevision starts behind so the first tick builds the draw list.
	s.lastRevision = s.store.Revision() - 1
	return s
}

// Avatar exposes the controller for state snapshots.
func (s *Session) Avatar() *avatar.Controller { return s.ctrl }

// Store exposes the session's scene store.
func (s *Session) Store() *scene.Store { return s.store }

// Chat is the outgoing echo stream. Records are dropped, not blocked on,
// when the consumer lags.
func (s *Session) Chat() <-chan ChatRecord { return s.chat }

// Announcement returns the active announcement, if any.
func (s *Session) Announcement() (Announcement, bool) {
	s.annMu.Lock()
	defer s.annMu.Unlock()
	if s.ann == nil || !s.now().Before(s.ann.ExpiresAt) {
		return Announcement{}, false
	}
	return *s.ann, true
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// Done is closed once the tick loop has fully stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close ends the session: the tick loop stops, in-flight generation is
// abandoned, and no tick runs afterwards. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.log.Info("session closed")
	})
}

// OnKey records a held-key change. Applied at the next tick.
func (s *Session) OnKey(k Key, down bool) {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	if down {
		s.keys[k] = true
	} else {
		delete(s.keys, k)
	}
}

// OnCommand stages one raw chat line. The line is interpreted at the start
// of the next tick, so its effects are observed atomically between frames.
func (s *Session) OnCommand(rawLine string) {
	if s.Closed() {
		return
	}
	s.pendingMu.Lock()
	s.pending = append(s.pending, rawLine)
	s.pendingMu.Unlock()
}

// LoadProject replaces the scene from a project document. The swap is
// atomic; a failed document leaves the scene untouched.
func (s *Session) LoadProject(doc scene.Project) error {
	entities, dropped, err := scene.FromDocument(doc)
	if err != nil {
		return err
	}
	if dropped > 0 {
		s.log.WithField("dropped", dropped).Warn("project contained invalid entities")
	}
	return s.store.ReplaceAll(entities)
}

// GenerateScene asks the external generator for a replacement scene and
// swaps it in. On any failure the current scene remains as it was. The call
// is cancelled if the session closes first.
func (s *Session) GenerateScene(prompt string) error {
	if s.genr == nil {
		return gen.ErrGenerationFailed
	}
	entities, err := s.genr.GenerateScene(s.ctx, prompt, s.store.List())
	if err != nil {
		return err
	}
	if s.Closed() {
		// The session ended while the generator was working; abandon the
		// result rather than mutate a dead session.
		return s.ctx.Err()
	}
	return s.store.ReplaceAll(entities)
}

// Run drives the tick loop until the session closes or ctx is cancelled.
// A fixed-timestep accumulator keeps simulation steps at TickRate even when
// the wall-clock ticker jitters or stalls.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	step := time.Second / TickRate
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	last := s.now()
	var acc time.Duration
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		now := s.now()
		acc += now.Sub(last)
		last = now
		// Cap the backlog so a long stall doesn't spiral into a catch-up
		// burst of hundreds of steps.
		if acc > time.Second/4 {
			acc = time.Second / 4
		}
		for acc >= step {
			if s.Closed() {
				return
			}
			s.step()
			acc -= step
		}
	}
}

// step runs exactly one simulation tick: staged commands, input, physics,
// camera, then a frame for the renderer.
func (s *Session) step() {
	s.drainPending()
	if s.Closed() {
		// A staged :kick/:ban ended the session; this tick never completes.
		return
	}

	st := s.ctrl.Advance(s.inputSample())
	s.expireAnnouncement()

	if rev := s.store.Revision(); rev != s.lastRevision {
		s.draws = render.BuildDrawList(s.store.List())
		s.lastRevision = rev
	}

	s.tick++
	if s.renderer != nil {
		s.renderer.Submit(render.Frame{
			Tick:   s.tick,
			Camera: s.followCamera(st),
			Avatar: render.AvatarViewOf(st),
			Draws:  s.draws,
		})
	}
}

func (s *Session) inputSample() avatar.Input {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	return avatar.Input{
		Forward:  s.keys[KeyForward],
		Backward: s.keys[KeyBackward],
		Left:     s.keys[KeyLeft],
		Right:    s.keys[KeyRight],
		Jump:     s.keys[KeyJump],
		Descend:  s.keys[KeyDescend],
	}
}

func (s *Session) drainPending() {
	s.pendingMu.Lock()
	lines := s.pending
	s.pending = nil
	s.pendingMu.Unlock()
	for _, line := range lines {
		s.handleLine(line)
		if s.Closed() {
			return
		}
	}
}

// cameraTarget is the ideal camera spot: cameraBack behind the avatar's
// facing and cameraUp above it.
func cameraTarget(st avatar.State) entity.Vec3 {
	return entity.Vec3{
		X: st.Position.X + cameraBack*math.Sin(st.Yaw),
		Y: st.Position.Y + cameraUp,
		Z: st.Position.Z + cameraBack*math.Cos(st.Yaw),
	}
}

// followCamera eases the camera toward an offset behind and above the
// avatar, looking at a point just over its head.
func (s *Session) followCamera(st avatar.State) render.Camera {
	target := cameraTarget(st)
	s.cam.X += (target.X - s.cam.X) * cameraEase
	s.cam.Y += (target.Y - s.cam.Y) * cameraEase
	s.cam.Z += (target.Z - s.cam.Z) * cameraEase
	return render.Camera{
		Position: s.cam,
		LookAt:   entity.Vec3{X: st.Position.X, Y: st.Position.Y + cameraLookUp, Z: st.Position.Z},
	}
}

func (s *Session) setAnnouncement(text string, d time.Duration) {
	s.annMu.Lock()
	defer s.annMu.Unlock()
	s.ann = &Announcement{Text: text, ExpiresAt: s.now().Add(d)}
}

func (s *Session) expireAnnouncement() {
	s.annMu.Lock()
	defer s.annMu.Unlock()
	if s.ann != nil && !s.now().Before(s.ann.ExpiresAt) {
		s.ann = nil
	}
}

func (s *Session) emit(rec ChatRecord) {
	select {
	case s.chat <- rec:
	default:
		// Consumer is not keeping up; chat echo is best-effort.
	}
}

// trimmed returns line without trailing newline noise from the transport.
func trimmed(line string) string {
	return strings.TrimRight(line, "\r\n")
}
