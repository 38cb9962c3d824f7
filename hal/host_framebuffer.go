//go:build !tinygo || !baremetal

package hal

import "sync"

// hostFramebuffer is double buffered: the OS draws into back and Present
// publishes it to front, which the window reads from another goroutine.
type hostFramebuffer struct {
	width  int
	height int
	stride int
	buf    []byte

	mu    sync.Mutex
	front []byte
	dirty bool
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

func newHostFramebuffer(width, height int) *hostFramebuffer {
	stride := width * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
		front:  make([]byte, stride*height),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.stride }
func (f *hostFramebuffer) Buffer() []byte      { return f.buf }

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	FillRectRGB565(f, 0, 0, f.width, f.height, r, g, b)
}

func (f *hostFramebuffer) Present() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.front, f.buf)
	f.dirty = true
	return nil
}

// snapshotRGB565 copies the last presented frame into dst and reports
// whether it changed since the previous snapshot.
func (f *hostFramebuffer) snapshotRGB565(dst []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(dst, f.front)
	changed := f.dirty
	f.dirty = false
	return changed
}
