package source

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

// Synthetic generator parameters.
const (
	BaseTemp      = 25.0   // °C around which the background drifts
	DriftAmp      = 5.0    // °C amplitude of the slow drift
	DriftPeriodMs = 5000.0 // divisor of elapsed ms inside sin()
	HeatSpots     = 2
	SpotMinTemp   = 35.0 // °C, inclusive
	SpotTempSpan  = 10.0 // peak in [35, 45)
	SpotRadius    = 2.0  // cells
)

// Rand is the randomness the synthetic generator needs. *math/rand.Rand
// satisfies it; tests inject scripted sequences.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// HeatSpot is a simulated warm body.
type HeatSpot struct {
	X, Y int
	Temp float64
}

// Synthetic produces plausible frames without hardware: a slowly drifting
// background with per-cell noise and two random heat spots.
type Synthetic struct {
	rng Rand
}

// NewSynthetic returns a generator drawing from rng.
func NewSynthetic(rng Rand) *Synthetic {
	return &Synthetic{rng: rng}
}

// NewSeededSynthetic returns a generator backed by math/rand with the given
// seed. Equal seeds produce equal frame sequences.
func NewSeededSynthetic(seed int64) *Synthetic {
	return NewSynthetic(rand.New(rand.NewSource(seed)))
}

func (s *Synthetic) Next(_ context.Context, tick Tick) (*thermal.Frame, error) {
	return thermal.FromArray(Generate(s.rng, tick.Elapsed), tick.Time), nil
}

// Generate computes one synthetic frame at the given elapsed time.
//
// Draw order from rng: spot 1 (x, y, temp), spot 2 (x, y, temp), then one
// noise sample per cell in row-major order.
func Generate(rng Rand, elapsed time.Duration) [thermal.Cells]float64 {
	t := float64(elapsed) / float64(time.Millisecond)
	base := BaseTemp + DriftAmp*math.Sin(t/DriftPeriodMs)

	var spots [HeatSpots]HeatSpot
	for i := range spots {
		spots[i] = HeatSpot{
			X:    rng.Intn(thermal.Size),
			Y:    rng.Intn(thermal.Size),
			Temp: SpotMinTemp + rng.Float64()*SpotTempSpan,
		}
	}

	var out [thermal.Cells]float64
	for y := 0; y < thermal.Size; y++ {
		for x := 0; x < thermal.Size; x++ {
			v := base + rng.Float64()*2 - 1
			out[y*thermal.Size+x] = applySpots(v, x, y, spots[:])
		}
	}
	return out
}

// applySpots overrides v with the falloff of every spot within SpotRadius.
// Spots are checked in order and the last one in range wins, even if an
// earlier spot is hotter at this cell.
// TODO: confirm whether overlapping spots should take the maximum instead.
func applySpots(v float64, x, y int, spots []HeatSpot) float64 {
	for _, s := range spots {
		dx := float64(x - s.X)
		dy := float64(y - s.Y)
		d := math.Sqrt(dx*dx + dy*dy)
		if d < SpotRadius {
			v = s.Temp - 2*d
		}
	}
	return v
}
