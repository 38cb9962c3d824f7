// Package hal is the board boundary: everything the scheduler and its
// services touch outside the process model goes through these interfaces.
package hal

import "errors"

var ErrNotImplemented = errors.New("not implemented")

// HAL is one board.
type HAL interface {
	// Name identifies the board in boot logs.
	Name() string
	Logger() Logger
	LED() LED
	Display() Display
	Time() Time
}

// Logger writes newline-delimited log lines. Implementations may be slow;
// interrupt handlers log through the logger service instead.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is the board's status pin.
type LED interface {
	High()
	Low()
}

// Time is the tick source behind the scheduler tick.
//
// Each value is a monotonically increasing sequence number; a slow reader
// may miss values but never sees them out of order.
type Time interface {
	Ticks() <-chan uint64
	// PeriodMicros is the length of one tick.
	PeriodMicros() uint32
}

// Display exposes the panel framebuffer, or nil on headless boards.
type Display interface {
	Framebuffer() Framebuffer
}

// PixelFormat is the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb, little endian.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a pixel buffer drawn in place. Present makes the drawn
// frame visible.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}
