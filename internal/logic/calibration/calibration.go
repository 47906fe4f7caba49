package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/ThermoGo/internal/debug"
)

// ErrNonFinite is returned by SetRange for NaN or infinite bounds.
var ErrNonFinite = errors.New("calibration bounds must be finite")

// Range is the temperature window, in °C, mapped onto the colour gradient.
// Min >= Max is allowed; rendering clamps instead of failing.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate reports whether the range has zero width.
func (r Range) Degenerate() bool {
	return r.Min == r.Max
}

// Inverted reports whether Min is above Max.
func (r Range) Inverted() bool {
	return r.Min > r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("%.1f°C - %.1f°C", r.Min, r.Max)
}

// State holds the operator-configurable display range.
//
// State is not safe for concurrent use; the station serializes access.
type State struct {
	r Range

	// OnChange is called synchronously after every accepted SetRange.
	OnChange func(Range)
}

// New returns a calibration state starting at r.
func New(r Range) *State {
	return &State{r: r}
}

// Range returns the current range.
func (s *State) Range() Range {
	return s.r
}

// SetRange replaces the range. Any finite pair is accepted; a zero-width
// range renders as a single flat colour and is only logged.
func (s *State) SetRange(min, max float64) error {
	if !finite(min) || !finite(max) {
		return fmt.Errorf("%w: min=%v max=%v", ErrNonFinite, min, max)
	}
	r := Range{Min: min, Max: max}
	switch {
	case r.Degenerate():
		debug.Warn("Calibration range is empty (min == max == %.2f); display will be flat", min)
	case r.Inverted():
		debug.Warn("Calibration range is inverted (min %.2f > max %.2f)", min, max)
	}
	s.r = r
	debug.Verbose("Calibration set to %s", r)
	if s.OnChange != nil {
		s.OnChange(r)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
