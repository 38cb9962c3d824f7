//go:build tinygo && !baremetal

package hal

import "runtime"

// tinyGoHostHAL serves `tinygo run` on linux or wasm: no pins, an off-screen
// framebuffer and println for the log.
type tinyGoHostHAL struct {
	logger tinyGoHostLogger
	led    *tinyGoHostLED
	fb     *hostFramebuffer
	t      *tinyGoTime
}

func New() HAL {
	h := &tinyGoHostHAL{
		fb: newHostFramebuffer(320, 320),
		t:  newTinyGoTime(1000),
	}
	h.led = &tinyGoHostLED{logger: h.logger}
	return h
}

func (h *tinyGoHostHAL) Name() string     { return "tinygo/" + runtime.GOOS }
func (h *tinyGoHostHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHostHAL) LED() LED         { return h.led }
func (h *tinyGoHostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *tinyGoHostHAL) Time() Time       { return h.t }

type tinyGoHostLogger struct{}

func (tinyGoHostLogger) WriteLineString(s string) { println(s) }
func (tinyGoHostLogger) WriteLineBytes(b []byte)  { println(string(b)) }

// tinyGoHostLED logs transitions only.
type tinyGoHostLED struct {
	on     bool
	logger tinyGoHostLogger
}

func (l *tinyGoHostLED) High() { l.set(true) }
func (l *tinyGoHostLED) Low()  { l.set(false) }

func (l *tinyGoHostLED) set(on bool) {
	if l.on == on {
		return
	}
	l.on = on
	if on {
		l.logger.WriteLineString("led: on")
	} else {
		l.logger.WriteLineString("led: off")
	}
}
