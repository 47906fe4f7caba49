package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/ThermoGo/internal/clock"
	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/logic/source"
)

// ErrInvalidOperation is returned for commands that are not valid in the
// current state (sensor off, burst already running, bad burst config).
var ErrInvalidOperation = errors.New("invalid operation")

// State is the durable state of the controller.
type State int

const (
	Idle State = iota
	BurstRunning
)

func (s State) String() string {
	if s == BurstRunning {
		return "burst"
	}
	return "idle"
}

// Kind tells single captures from burst captures.
type Kind string

const (
	KindSingle Kind = "single"
	KindBurst  Kind = "burst"
)

// Image is one captured snapshot. Ownership passes to the Sink on emission;
// the controller keeps no reference to it.
type Image struct {
	ID      string
	Time    time.Time
	Kind    Kind
	Index   int // 1-based position in the burst; 1 for singles
	Total   int // burst length; 1 for singles
	Surface render.Surface
}

// SurfaceSource exposes the live display the controller photographs.
type SurfaceSource interface {
	// IsOn reports whether the sensor is running.
	IsOn() bool
	// Surface returns the current rendered surface, or false if nothing has
	// been rendered yet.
	Surface() (render.Surface, bool)
}

// Sink receives captured images in emission order.
type Sink interface {
	Add(Image)
}

// Deps holds the controller's collaborators.
type Deps struct {
	Clock  clock.Clock
	Source SurfaceSource
	Sink   Sink

	// OnProgress is called after every burst capture.
	OnProgress func(Progress)
	// OnState is called when the controller enters or leaves BurstRunning.
	OnState func(State)
	// NewID generates image IDs; defaults to random UUIDs.
	NewID func() string
}

// session is the state of one running burst. It lives exactly as long as the
// burst timer it owns.
type session struct {
	taken  int
	target int
	task   clock.Task
}

// Controller coordinates single captures and timed bursts.
//
// Controller is not safe for concurrent use. Its timer callbacks must run on
// the same logical thread as its methods (the station wraps them with its
// mutex).
type Controller struct {
	deps    Deps
	session *session
}

// NewController builds an idle controller.
func NewController(d Deps) *Controller {
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &Controller{deps: d}
}

// State returns Idle or BurstRunning.
func (c *Controller) State() State {
	if c.session != nil {
		return BurstRunning
	}
	return Idle
}

// Progress returns the progress of the running burst, if any.
func (c *Controller) Progress() (Progress, bool) {
	if c.session == nil {
		return Progress{}, false
	}
	return Progress{Taken: c.session.taken, Target: c.session.target}, true
}

// CaptureSingle emits one snapshot of the current surface. It does not touch
// a running burst.
func (c *Controller) CaptureSingle() (Image, error) {
	if !c.deps.Source.IsOn() {
		return Image{}, fmt.Errorf("%w: sensor is off", ErrInvalidOperation)
	}
	surf, ok := c.deps.Source.Surface()
	if !ok {
		return Image{}, fmt.Errorf("single capture: %w: no frame rendered yet", source.ErrSensorUnavailable)
	}
	img := c.emit(surf, KindSingle, 1, 1)
	return img, nil
}

// StartBurst begins a burst of cfg.MaxFrames captures, one every
// cfg.Interval. The first capture is taken before StartBurst returns.
// cfg is read once; later changes only apply to the next burst.
func (c *Controller) StartBurst(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !c.deps.Source.IsOn() {
		return fmt.Errorf("%w: sensor is off", ErrInvalidOperation)
	}
	if c.session != nil {
		return fmt.Errorf("%w: burst already running", ErrInvalidOperation)
	}
	if _, ok := c.deps.Source.Surface(); !ok {
		return fmt.Errorf("start burst: %w: no frame rendered yet", source.ErrSensorUnavailable)
	}

	s := &session{target: cfg.MaxFrames}
	c.session = s
	debug.Burst(cfg.MaxFrames, cfg.Interval)
	c.notifyState(BurstRunning)

	c.shoot(s)
	if s.taken == s.target {
		c.finish(s, "complete")
		return nil
	}
	s.task = c.deps.Clock.Every(cfg.Interval, func() { c.tick(s) })
	return nil
}

// StopBurst cancels the running burst. It is a no-op when idle.
func (c *Controller) StopBurst() {
	if c.session == nil {
		return
	}
	c.finish(c.session, "stopped")
}

// SensorOff must be called when the sensor is turned off; it forces any
// running burst to stop.
func (c *Controller) SensorOff() {
	if c.session == nil {
		return
	}
	c.finish(c.session, "stopped (sensor off)")
}

// tick runs on the burst timer. Ticks belonging to a session that has since
// ended are ignored, so nothing is ever emitted after cancellation.
func (c *Controller) tick(s *session) {
	if c.session != s {
		return
	}
	if s.taken < s.target {
		c.shoot(s)
	}
	if s.taken == s.target {
		c.finish(s, "complete")
	}
}

// shoot emits one burst capture. If no surface is available the tick is
// skipped and the burst keeps running.
func (c *Controller) shoot(s *session) {
	surf, ok := c.deps.Source.Surface()
	if !ok {
		debug.Warn("Burst capture %d/%d skipped: no frame available", s.taken+1, s.target)
		return
	}
	c.emit(surf, KindBurst, s.taken+1, s.target)
	s.taken++
	p := Progress{Taken: s.taken, Target: s.target}
	debug.Progress(p.Taken, p.Target)
	if c.deps.OnProgress != nil {
		c.deps.OnProgress(p)
	}
}

func (c *Controller) emit(surf render.Surface, kind Kind, index, total int) Image {
	img := Image{
		ID:      c.deps.NewID(),
		Time:    c.deps.Clock.Now(),
		Kind:    kind,
		Index:   index,
		Total:   total,
		Surface: surf,
	}
	debug.Capture(string(kind), img.ID)
	c.deps.Sink.Add(img)
	return img
}

// finish releases the burst timer and discards the session. Every exit path
// from BurstRunning goes through here.
func (c *Controller) finish(s *session, why string) {
	if s.task != nil {
		s.task.Stop()
		s.task = nil
	}
	if c.session == s {
		c.session = nil
	}
	debug.Info("Burst %s after %d/%d pictures", why, s.taken, s.target)
	c.notifyState(Idle)
}

func (c *Controller) notifyState(st State) {
	if c.deps.OnState != nil {
		c.deps.OnState(st)
	}
}
