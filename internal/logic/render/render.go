package render

import (
	"image/color"
	"math"

	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

// Surface is a rendered frame: one colour per sensor cell, together with the
// inputs that produced it.
type Surface struct {
	Colors [thermal.Cells]color.RGBA
	Frame  *thermal.Frame
	Range  calibration.Range
}

// At returns the colour of column x, row y (clamped like thermal.Frame.At).
func (s *Surface) At(x, y int) color.RGBA {
	return s.Colors[clamp(y)*thermal.Size+clamp(x)]
}

// Normalize maps v into [0, 1] relative to r. A zero-width range maps
// everything to 0, and NaN readings map to 0.
func Normalize(v float64, r calibration.Range) float64 {
	if r.Max == r.Min || math.IsNaN(v) {
		return 0
	}
	n := (v - r.Min) / (r.Max - r.Min)
	switch {
	case n < 0 || math.IsNaN(n):
		return 0
	case n > 1:
		return 1
	default:
		return n
	}
}

// ColorOf maps a normalized value onto a plain blue (cold) to red (hot)
// gradient. Green is always 0.
func ColorOf(norm float64) color.RGBA {
	if norm < 0 || math.IsNaN(norm) {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return color.RGBA{
		R: uint8(math.Round(norm * 255)),
		G: 0,
		B: uint8(math.Round((1 - norm) * 255)),
		A: 0xff,
	}
}

// Render colours every cell of f under r. It is a pure function.
func Render(f *thermal.Frame, r calibration.Range) Surface {
	s := Surface{Frame: f, Range: r}
	vals := f.Values()
	for i, v := range vals {
		s.Colors[i] = ColorOf(Normalize(v, r))
	}
	return s
}

// Stats summarizes a frame.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// FrameStats returns the minimum, maximum and mean reading of f.
func FrameStats(f *thermal.Frame) Stats {
	vals := f.Values()
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	for _, v := range vals {
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
		sum += v
	}
	st.Mean = sum / thermal.Cells
	return st
}

func clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= thermal.Size {
		return thermal.Size - 1
	}
	return i
}
