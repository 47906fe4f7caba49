package capture

import (
	"fmt"
	"time"
)

// Config holds the burst parameters, read once when a burst starts.
type Config struct {
	Interval  time.Duration // delay between two captures
	MaxFrames int           // captures per burst
}

// Validate rejects non-positive parameters.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: burst interval must be > 0, got %v", ErrInvalidOperation, c.Interval)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("%w: burst length must be > 0, got %d", ErrInvalidOperation, c.MaxFrames)
	}
	return nil
}

// Progress reports how far a burst has gone.
type Progress struct {
	Taken  int `json:"taken"`
	Target int `json:"target"`
}

// Percent returns progress in [0, 100].
func (p Progress) Percent() float64 {
	if p.Target <= 0 {
		return 0
	}
	return float64(p.Taken) / float64(p.Target) * 100
}

// Label formats progress for the operator, e.g. "2/3 pictures taken".
func (p Progress) Label() string {
	return fmt.Sprintf("%d/%d pictures taken", p.Taken, p.Target)
}

// Done reports whether every capture of the burst was taken.
func (p Progress) Done() bool {
	return p.Target > 0 && p.Taken >= p.Target
}
