// Package fbdisplay adapts a hal.Framebuffer to the TinyGo drivers
// Displayer interface, so tinyfont and tinyterm can draw on it.
package fbdisplay

import (
	"image/color"

	"ember/hal"

	"tinygo.org/x/drivers"
)

// Display draws into a rectangular window of a framebuffer. Coordinates
// are relative to the window and clipped to it. Rows are addressed
// modulo the scroll offset, like a panel with hardware vertical scroll.
type Display struct {
	fb     hal.Framebuffer
	x, y   int16
	w, h   int16
	scroll int16
	tmp    []byte
}

var _ drivers.Displayer = (*Display)(nil)

// New covers the whole framebuffer.
func New(fb hal.Framebuffer) *Display {
	return &Display{fb: fb, w: int16(fb.Width()), h: int16(fb.Height())}
}

// Window returns a display restricted to a sub-rectangle of d.
func (d *Display) Window(x, y, w, h int16) *Display {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, d.w), min(y+h, d.h)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return &Display{fb: d.fb, x: d.x + x0, y: d.y + y0, w: x1 - x0, h: y1 - y0}
}

func (d *Display) Size() (x, y int16) { return d.w, d.h }

func (d *Display) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return
	}
	hal.SetPixelRGB565(d.fb, int(d.x+x), int(d.y+d.row(y)), c.R, c.G, c.B)
}

// row maps a logical row to the window row it is shown on.
func (d *Display) row(y int16) int16 {
	return (y - d.scroll + d.h) % d.h
}

// Display presents the framebuffer.
func (d *Display) Display() error { return d.fb.Present() }

func (d *Display) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+width, d.w), min(y+height, d.h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}
	if d.scroll == 0 {
		hal.FillRectRGB565(d.fb, int(d.x+x0), int(d.y+y0), int(x1-x0), int(y1-y0), c.R, c.G, c.B)
		return nil
	}
	for yy := y0; yy < y1; yy++ {
		hal.FillRectRGB565(d.fb, int(d.x+x0), int(d.y+d.row(yy)), int(x1-x0), 1, c.R, c.G, c.B)
	}
	return nil
}

// Clear fills the whole window.
func (d *Display) Clear(c color.RGBA) { d.FillRectangle(0, 0, d.w, d.h, c) }

// SetScroll shows logical row line at the top of the window. Pixels
// already drawn keep their logical rows.
func (d *Display) SetScroll(line int16) {
	if d.h <= 0 {
		return
	}
	line %= d.h
	if line < 0 {
		line += d.h
	}
	if line == d.scroll {
		return
	}
	d.rotate(line - d.scroll)
	d.scroll = line
}

// rotate moves every window row up by delta rows, wrapping at the top.
func (d *Display) rotate(delta int16) {
	buf := d.fb.Buffer()
	if buf == nil || d.fb.Format() != hal.PixelFormatRGB565 || d.w <= 0 {
		return
	}
	stride := d.fb.StrideBytes()
	span := int(d.w) * 2
	h := int(d.h)
	if need := span * h; len(d.tmp) < need {
		d.tmp = make([]byte, need)
	}
	for r := 0; r < h; r++ {
		off := (int(d.y)+r)*stride + int(d.x)*2
		copy(d.tmp[r*span:(r+1)*span], buf[off:off+span])
	}
	for r := 0; r < h; r++ {
		src := (r + int(delta) + h) % h
		off := (int(d.y)+r)*stride + int(d.x)*2
		copy(buf[off:off+span], d.tmp[src*span:(src+1)*span])
	}
}

func (d *Display) SetRotation(rotation drivers.Rotation) error { return nil }
