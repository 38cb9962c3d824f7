//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
)

// HostConfig selects host board parameters.
type HostConfig struct {
	// TickMicros is the scheduler tick period. 0 means 1ms.
	TickMicros uint32
	// Quiet suppresses LED transitions on the log.
	Quiet bool
}

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	fb     *hostFramebuffer
	t      *hostTime
}

// New returns a host HAL implementation.
func New(cfg HostConfig) HAL {
	return newHost(cfg)
}

func newHost(cfg HostConfig) *hostHAL {
	logger := &hostLogger{w: os.Stdout}
	return &hostHAL{
		logger: logger,
		led:    &hostLED{logger: logger, quiet: cfg.Quiet},
		fb:     newHostFramebuffer(320, 320),
		t:      newHostTime(cfg.TickMicros),
	}
}

func (h *hostHAL) Name() string     { return "host" }
func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) LED() LED         { return h.led }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	mu     sync.Mutex
	on     bool
	quiet  bool
	logger *hostLogger
}

func (l *hostLED) High() { l.set(true) }
func (l *hostLED) Low()  { l.set(false) }

func (l *hostLED) set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on == on {
		return
	}
	l.on = on
	if l.quiet {
		return
	}
	if on {
		l.logger.WriteLineString("led: HIGH")
	} else {
		l.logger.WriteLineString("led: LOW")
	}
}

// On reports the LED state.
func (l *hostLED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}
