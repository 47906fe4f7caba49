package thermal

import (
	"fmt"
	"time"
)

// Size is the edge length of a Grid-EYE sensor grid (8x8 pixels).
const Size = 8

// Cells is the number of readings in one frame.
const Cells = Size * Size

// Frame is one full grid snapshot of temperature readings in °C, row-major.
// A Frame is immutable once produced: constructors copy their input and
// accessors never expose the backing array.
type Frame struct {
	values [Cells]float64
	time   time.Time
}

// NewFrame builds a frame from exactly Cells row-major readings.
func NewFrame(values []float64, t time.Time) (*Frame, error) {
	if len(values) != Cells {
		return nil, fmt.Errorf("frame needs %d readings, got %d", Cells, len(values))
	}
	f := &Frame{time: t}
	copy(f.values[:], values)
	return f, nil
}

// FromArray builds a frame from a fixed-size array. It cannot fail.
func FromArray(values [Cells]float64, t time.Time) *Frame {
	return &Frame{values: values, time: t}
}

// FromRows builds a frame from a Size x Size grid indexed [y][x].
func FromRows(rows [Size][Size]float64, t time.Time) *Frame {
	f := &Frame{time: t}
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			f.values[y*Size+x] = rows[y][x]
		}
	}
	return f
}

// At returns the reading at column x, row y. Out-of-range indices are clamped
// to the nearest edge.
func (f *Frame) At(x, y int) float64 {
	return f.values[index(x, y)]
}

// Values returns a copy of the readings, row-major.
func (f *Frame) Values() [Cells]float64 {
	return f.values
}

// Rows returns a copy of the readings indexed [y][x].
func (f *Frame) Rows() [Size][Size]float64 {
	var rows [Size][Size]float64
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			rows[y][x] = f.values[y*Size+x]
		}
	}
	return rows
}

// Time returns when the frame was produced.
func (f *Frame) Time() time.Time {
	return f.time
}

// Equal reports whether both frames hold the same readings (time is ignored).
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.values == o.values
}

func index(x, y int) int {
	return clampIndex(y)*Size + clampIndex(x)
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i >= Size {
		return Size - 1
	}
	return i
}
