// Package station wires the thermal camera together: sensor feed,
// calibration, renderer, capture controller and gallery.
//
// Every operation and every timer callback runs with the station mutex held,
// so the components underneath only ever see one logical thread.
package station

import (
	"sync"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/clock"
	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/gallery"
	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/feed"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/logic/source"
	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

// Indicator is lit while the sensor is online (see statusled.LED).
type Indicator interface {
	Set(online bool) error
}

// Options configures a Station.
type Options struct {
	Source        source.Source
	Clock         clock.Clock // defaults to the real clock
	FrameInterval time.Duration
	Range         calibration.Range
	Capture       capture.Config
	Gallery       *gallery.Gallery // defaults to an unbounded gallery
	Indicator     Indicator        // optional
	NewID         func() string    // optional, image IDs
}

// Station is safe for concurrent use.
//
// Listeners registered with On* are called with the station locked, in the
// order the events happen. They must not call back into the station.
type Station struct {
	mu sync.Mutex

	clock   clock.Clock
	feed    *feed.Feed
	cal     *calibration.State
	ctrl    *capture.Controller
	gallery *gallery.Gallery
	led     Indicator

	surface    render.Surface
	hasSurface bool
	captureCfg capture.Config
	progress   capture.Progress

	onSurface  []func(render.Surface)
	onProgress []func(capture.Progress)
	onStatus   []func(feed.Status)
	onState    []func(capture.State)
	onCapture  []func(gallery.Entry)
}

// New builds a station with the sensor off.
func New(opts Options) *Station {
	c := opts.Clock
	if c == nil {
		c = clock.NewReal()
	}
	g := opts.Gallery
	if g == nil {
		g = gallery.New(0)
	}
	st := &Station{
		gallery:    g,
		led:        opts.Indicator,
		captureCfg: opts.Capture,
	}
	st.clock = lockedClock{Clock: c, mu: &st.mu}

	st.feed = feed.New(opts.Source, st.clock, opts.FrameInterval)
	st.feed.OnFrame = st.frameArrived
	st.feed.OnStatus = st.statusChanged

	st.cal = calibration.New(opts.Range)
	st.cal.OnChange = st.rangeChanged

	st.ctrl = capture.NewController(capture.Deps{
		Clock:      st.clock,
		Source:     display{st},
		Sink:       sink{st},
		OnProgress: st.progressed,
		OnState:    st.stateChanged,
		NewID:      opts.NewID,
	})
	return st
}

// ---------- sensor ----------

// SensorOn starts the sensor feed. The first frame is read before SensorOn
// returns.
func (st *Station) SensorOn() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.feed.Start()
}

// SensorOff stops the feed and any running burst. The last surface stays
// displayed.
func (st *Station) SensorOff() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ctrl.SensorOff()
	st.feed.Stop()
}

// SensorIsOn reports whether the feed is running.
func (st *Station) SensorIsOn() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.feed.IsOn()
}

// Status returns the sensor status.
func (st *Station) Status() feed.Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.feed.Status()
}

// ---------- calibration ----------

// SetRange updates the calibration. The last frame is re-rendered before
// SetRange returns.
func (st *Station) SetRange(min, max float64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cal.SetRange(min, max)
}

// Range returns the current calibration.
func (st *Station) Range() calibration.Range {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cal.Range()
}

// ---------- capture ----------

// CaptureConfig returns the burst settings used by the next StartBurst.
func (st *Station) CaptureConfig() capture.Config {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.captureCfg
}

// SetCaptureConfig validates and stores burst settings. A running burst keeps
// the settings it started with.
func (st *Station) SetCaptureConfig(cfg capture.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.captureCfg = cfg
	debug.Verbose("Capture config set to %d frames every %v", cfg.MaxFrames, cfg.Interval)
	return nil
}

// CaptureSingle takes one picture of the current display.
func (st *Station) CaptureSingle() (capture.Image, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ctrl.CaptureSingle()
}

// StartBurst starts a burst with the current capture config.
func (st *Station) StartBurst() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ctrl.StartBurst(st.captureCfg)
}

// StartBurstWith starts a burst with cfg. cfg becomes the stored capture
// config only if the burst starts.
func (st *Station) StartBurstWith(cfg capture.Config) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.ctrl.StartBurst(cfg); err != nil {
		return err
	}
	st.captureCfg = cfg
	return nil
}

// StopBurst cancels a running burst. It is a no-op when idle.
func (st *Station) StopBurst() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ctrl.StopBurst()
}

// CaptureState returns Idle or BurstRunning.
func (st *Station) CaptureState() capture.State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ctrl.State()
}

// Gallery returns the capture sink.
func (st *Station) Gallery() *gallery.Gallery {
	return st.gallery
}

// ---------- display ----------

// Surface returns the displayed surface, false until a frame was rendered.
func (st *Station) Surface() (render.Surface, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.surface, st.hasSurface
}

// Close turns the sensor off and releases the indicator.
func (st *Station) Close() {
	st.SensorOff()
	if st.led != nil {
		if err := st.led.Set(false); err != nil {
			debug.Error(err)
		}
	}
}

// ---------- listeners ----------

// OnSurface registers fn for every new rendered surface.
func (st *Station) OnSurface(fn func(render.Surface)) {
	st.mu.Lock()
	st.onSurface = append(st.onSurface, fn)
	st.mu.Unlock()
}

// OnProgress registers fn for burst progress.
func (st *Station) OnProgress(fn func(capture.Progress)) {
	st.mu.Lock()
	st.onProgress = append(st.onProgress, fn)
	st.mu.Unlock()
}

// OnStatus registers fn for sensor status changes.
func (st *Station) OnStatus(fn func(feed.Status)) {
	st.mu.Lock()
	st.onStatus = append(st.onStatus, fn)
	st.mu.Unlock()
}

// OnState registers fn for capture state changes.
func (st *Station) OnState(fn func(capture.State)) {
	st.mu.Lock()
	st.onState = append(st.onState, fn)
	st.mu.Unlock()
}

// OnCapture registers fn for every image added to the gallery.
func (st *Station) OnCapture(fn func(gallery.Entry)) {
	st.mu.Lock()
	st.onCapture = append(st.onCapture, fn)
	st.mu.Unlock()
}

// ---------- internal hooks, called with mu held ----------

func (st *Station) frameArrived(f *thermal.Frame) {
	if debug.IsEnabled(debug.LevelVerbose) {
		s := render.FrameStats(f)
		debug.Frame(s.Min, s.Max, s.Mean)
	}
	st.show(f)
}

func (st *Station) rangeChanged(calibration.Range) {
	if f := st.feed.Last(); f != nil {
		st.show(f)
	}
}

func (st *Station) show(f *thermal.Frame) {
	st.surface = render.Render(f, st.cal.Range())
	st.hasSurface = true
	for _, fn := range st.onSurface {
		fn(st.surface)
	}
}

func (st *Station) statusChanged(s feed.Status) {
	if st.led != nil {
		if err := st.led.Set(s == feed.Online); err != nil {
			debug.Error(err)
		}
	}
	for _, fn := range st.onStatus {
		fn(s)
	}
}

func (st *Station) progressed(p capture.Progress) {
	st.progress = p
	for _, fn := range st.onProgress {
		fn(p)
	}
}

func (st *Station) stateChanged(s capture.State) {
	if p, ok := st.ctrl.Progress(); ok && s == capture.BurstRunning {
		st.progress = p
	}
	for _, fn := range st.onState {
		fn(s)
	}
}

// display is the controller's view of the station.
type display struct{ st *Station }

func (d display) IsOn() bool { return d.st.feed.IsOn() }

func (d display) Surface() (render.Surface, bool) {
	return d.st.surface, d.st.hasSurface
}

// sink forwards captures to the gallery and the capture listeners.
type sink struct{ st *Station }

func (s sink) Add(img capture.Image) {
	e := s.st.gallery.Add(img)
	for _, fn := range s.st.onCapture {
		fn(e)
	}
}

// lockedClock runs every scheduled callback with the station mutex held.
type lockedClock struct {
	clock.Clock
	mu *sync.Mutex
}

func (c lockedClock) Every(d time.Duration, fn func()) clock.Task {
	return c.Clock.Every(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn()
	})
}
