package feed

import (
	"context"
	"errors"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/clock"
	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/logic/source"
	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

// DefaultInterval is the delay between two frames when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Status is the sensor state shown to the operator.
type Status int

const (
	Off     Status = iota // sensor stopped by the operator
	Online                // last read succeeded
	Offline               // sensor on but the last read failed
)

func (s Status) String() string {
	switch s {
	case Off:
		return "off"
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Feed owns the sensor lifecycle: while on, it polls its Source on a fixed
// cadence and keeps the most recent frame.
//
// Feed is not safe for concurrent use. The station serializes calls and
// timer callbacks through one mutex.
type Feed struct {
	src      source.Source
	clock    clock.Clock
	interval time.Duration

	on      bool
	gen     int // bumped on every Stop; ticks from older generations are dropped
	task    clock.Task
	started time.Time
	last    *thermal.Frame
	status  Status

	// OnFrame is called with each new frame.
	OnFrame func(*thermal.Frame)
	// OnStatus is called when Status changes.
	OnStatus func(Status)
}

// New returns a stopped feed polling src every interval.
func New(src source.Source, c clock.Clock, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Feed{src: src, clock: c, interval: interval}
}

// Start turns the sensor on. The first frame is read synchronously so the
// display is populated immediately. Calling Start while on is a no-op.
func (f *Feed) Start() {
	if f.on {
		return
	}
	f.on = true
	f.started = f.clock.Now()
	debug.Info("Sensor started (interval %v)", f.interval)

	f.poll()
	gen := f.gen
	f.task = f.clock.Every(f.interval, func() {
		if !f.on || f.gen != gen {
			return
		}
		f.poll()
	})
}

// Stop turns the sensor off and cancels the sensor timer. The last frame is
// kept. Calling Stop while off is a no-op.
func (f *Feed) Stop() {
	if !f.on {
		return
	}
	f.on = false
	f.gen++
	if f.task != nil {
		f.task.Stop()
		f.task = nil
	}
	debug.Info("Sensor stopped")
	f.setStatus(Off)
}

// IsOn reports whether the sensor is on.
func (f *Feed) IsOn() bool {
	return f.on
}

// Status returns the current sensor status.
func (f *Feed) Status() Status {
	return f.status
}

// Last returns the most recent frame, or nil if none was ever read.
func (f *Feed) Last() *thermal.Frame {
	return f.last
}

// Interval returns the polling cadence.
func (f *Feed) Interval() time.Duration {
	return f.interval
}

func (f *Feed) poll() {
	now := f.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), f.interval)
	defer cancel()

	frame, err := f.src.Next(ctx, source.Tick{Time: now, Elapsed: now.Sub(f.started)})
	if err != nil {
		if !errors.Is(err, source.ErrSensorUnavailable) {
			err = errors.Join(source.ErrSensorUnavailable, err)
		}
		debug.Error(err)
		f.setStatus(Offline)
		return
	}

	f.last = frame
	f.setStatus(Online)
	if f.OnFrame != nil {
		f.OnFrame(frame)
	}
}

func (f *Feed) setStatus(s Status) {
	if f.status == s {
		return
	}
	f.status = s
	debug.Status(s.String())
	if f.OnStatus != nil {
		f.OnStatus(s)
	}
}
