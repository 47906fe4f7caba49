package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

// ErrSensorUnavailable is returned when a backend cannot produce a frame
// (timeout, bus error, disconnected sensor). Callers keep showing the last
// frame and report the sensor as offline.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Tick describes when a frame is requested.
type Tick struct {
	Time    time.Time     // wall time of the request, stamped on the frame
	Elapsed time.Duration // time since the feed was started
}

// Source produces successive thermal frames. Implementations are called from
// a single goroutine at a time.
type Source interface {
	Next(ctx context.Context, tick Tick) (*thermal.Frame, error)
}

// PixelReader is the hardware side of a Sensor source (see hw/amg88xx).
type PixelReader interface {
	ReadPixels() ([thermal.Cells]float64, error)
}

// Sensor reads frames from a physical Grid-EYE.
type Sensor struct {
	dev PixelReader
}

// NewSensor wraps a hardware pixel reader.
func NewSensor(dev PixelReader) *Sensor {
	return &Sensor{dev: dev}
}

func (s *Sensor) Next(ctx context.Context, tick Tick) (*thermal.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}
	px, err := s.dev.ReadPixels()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}
	return thermal.FromArray(px, tick.Time), nil
}

// Replay cycles through a fixed list of frames, restamping each with the
// tick time.
type Replay struct {
	frames []*thermal.Frame
	next   int
}

// NewReplay returns a source replaying frames in order, forever.
func NewReplay(frames ...*thermal.Frame) *Replay {
	return &Replay{frames: frames}
}

func (r *Replay) Next(_ context.Context, tick Tick) (*thermal.Frame, error) {
	if len(r.frames) == 0 {
		return nil, fmt.Errorf("%w: replay has no frames", ErrSensorUnavailable)
	}
	f := r.frames[r.next%len(r.frames)]
	r.next++
	return thermal.FromArray(f.Values(), tick.Time), nil
}
