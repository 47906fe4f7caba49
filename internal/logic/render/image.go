package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

// MinOverlayCellPx is the cell size above which temperatures are drawn on
// top of the colours.
const MinOverlayCellPx = 30

// DefaultCellPx is used when ImageOptions.CellPx is not set.
const DefaultCellPx = 30

// ImageOptions controls rasterization.
type ImageOptions struct {
	CellPx  int  // pixels per sensor cell
	Overlay bool // draw each reading as text when the cell is large enough
}

// Image rasterizes s into an RGBA image of Size*CellPx pixels per side.
func Image(s Surface, opts ImageOptions) *image.RGBA {
	cell := opts.CellPx
	if cell <= 0 {
		cell = DefaultCellPx
	}
	side := cell * thermal.Size
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < thermal.Size; y++ {
		for x := 0; x < thermal.Size; x++ {
			r := image.Rect(x*cell, y*cell, (x+1)*cell, (y+1)*cell)
			draw.Draw(img, r, &image.Uniform{C: s.At(x, y)}, image.Point{}, draw.Src)
		}
	}
	if opts.Overlay && cell > MinOverlayCellPx && s.Frame != nil {
		drawLabels(img, s, cell)
	}
	return img
}

// drawLabels writes "%.1f" in white, centred in each cell.
func drawLabels(img *image.RGBA, s Surface, cell int) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.White), Face: face}
	for y := 0; y < thermal.Size; y++ {
		for x := 0; x < thermal.Size; x++ {
			label := fmt.Sprintf("%.1f", s.Frame.At(x, y))
			w := d.MeasureString(label).Ceil()
			px := x*cell + (cell-w)/2
			py := y*cell + (cell+face.Ascent)/2
			d.Dot = fixed.Point26_6{X: fixed.I(px), Y: fixed.I(py)}
			d.DrawString(label)
		}
	}
}

// EncodePNG writes the rasterized surface as PNG.
func EncodePNG(w io.Writer, s Surface, opts ImageOptions) error {
	if err := png.Encode(w, Image(s, opts)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
