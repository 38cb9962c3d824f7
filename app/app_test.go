package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ember/emberos/kernel"
	"ember/hal"
)

type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *testLogger) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *testLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.lines {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type testLED struct {
	mu      sync.Mutex
	toggles int
}

func (l *testLED) High() { l.inc() }
func (l *testLED) Low()  { l.inc() }

func (l *testLED) inc() {
	l.mu.Lock()
	l.toggles++
	l.mu.Unlock()
}

type testTime struct {
	ch chan uint64
}

func (t *testTime) Ticks() <-chan uint64 { return t.ch }
func (t *testTime) PeriodMicros() uint32 { return 1000 }

type testFB struct {
	w, h int
	buf  []byte
}

func newTestFB(w, h int) *testFB { return &testFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *testFB) Width() int                   { return f.w }
func (f *testFB) Height() int                  { return f.h }
func (f *testFB) Format() hal.PixelFormat      { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int             { return f.w * 2 }
func (f *testFB) Buffer() []byte               { return f.buf }
func (f *testFB) Present() error               { return nil }
func (f *testFB) Framebuffer() hal.Framebuffer { return f }

func (f *testFB) ClearRGB(r, g, b uint8) { hal.FillRectRGB565(f, 0, 0, f.w, f.h, r, g, b) }

type testHAL struct {
	log  *testLogger
	led  *testLED
	fb   *testFB
	time *testTime
}

func newTestHAL(fb *testFB) *testHAL {
	return &testHAL{
		log:  &testLogger{},
		led:  &testLED{},
		fb:   fb,
		time: &testTime{ch: make(chan uint64, 16)},
	}
}

func (h *testHAL) Name() string       { return "test" }
func (h *testHAL) Logger() hal.Logger { return h.log }
func (h *testHAL) LED() hal.LED       { return h.led }
func (h *testHAL) Time() hal.Time     { return h.time }

func (h *testHAL) Display() hal.Display {
	if h.fb == nil {
		return nil
	}
	return h.fb
}

func stepUntil(t *testing.T, step func() error) error {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if err := step(); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("system did not stop")
	return nil
}

func virtualConfig() Config {
	cfg := DefaultConfig()
	cfg.Kernel.VirtualTime = true
	cfg.ExitAfterBench = true
	cfg.HeartbeatPeriod = 20
	return cfg
}

func TestSystemRunsBenchAndStops(t *testing.T) {
	h := newTestHAL(newTestFB(160, 320))
	step := New(h, virtualConfig())

	if err := stepUntil(t, step); !errors.Is(err, hal.ErrStop) {
		t.Fatalf("step = %v, want ErrStop", err)
	}
	if err := step(); !errors.Is(err, hal.ErrStop) {
		t.Fatalf("step after stop = %v", err)
	}
	if !h.log.contains("msgbench: checksum 0x2f12e082 ok") {
		t.Fatalf("checksum line missing: %q", h.log.lines)
	}
	if !h.log.contains("ember ") {
		t.Fatalf("boot line missing: %q", h.log.lines)
	}
	h.led.mu.Lock()
	toggles := h.led.toggles
	h.led.mu.Unlock()
	if toggles == 0 {
		t.Fatalf("heartbeat never toggled the LED")
	}
}

func TestSystemWithoutDisplay(t *testing.T) {
	h := newTestHAL(nil)
	cfg := virtualConfig()
	cfg.Kernel.Preemptive = false
	if err := stepUntil(t, New(h, cfg)); !errors.Is(err, hal.ErrStop) {
		t.Fatalf("step = %v, want ErrStop", err)
	}
}

func TestFatalReachesStepAndScreen(t *testing.T) {
	fb := newTestFB(160, 160)
	h := newTestHAL(fb)
	cfg := virtualConfig()
	cfg.Bench = false
	var infos []kernel.FatalInfo
	cfg.Kernel.OnFatal = func(info kernel.FatalInfo) { infos = append(infos, info) }

	sys, err := newSystem(h, cfg)
	if err != nil {
		t.Fatalf("newSystem: %v", err)
	}
	if _, err := sys.k.Spawn(kernel.ProcConfig{Name: "bad", Priority: 7, Entry: func(ctx *kernel.Context) error {
		ctx.Wait(0)
		return nil
	}}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	sys.start(context.Background())

	if err := stepUntil(t, sys.step); !errors.Is(err, kernel.ErrFatal) {
		t.Fatalf("step = %v, want ErrFatal", err)
	}
	if len(infos) != 1 || infos[0].Proc != "bad" {
		t.Fatalf("OnFatal calls = %+v", infos)
	}
	if !h.log.contains("reason: wait with empty signal mask") {
		t.Fatalf("fatal reason not logged: %q", h.log.lines)
	}
	var white, black int
	for i := 0; i+1 < len(fb.buf); i += 2 {
		switch uint16(fb.buf[i]) | uint16(fb.buf[i+1])<<8 {
		case 0xFFFF:
			white++
		case 0x0000:
			black++
		}
	}
	if white == 0 || black == 0 {
		t.Fatalf("fatal screen not painted: white=%d black=%d", white, black)
	}
}

func TestBareLoopBlinks(t *testing.T) {
	h := newTestHAL(nil)
	cfg := DefaultConfig()
	cfg.Bare = true
	cfg.HeartbeatPeriod = 3
	step := New(h, cfg)

	for seq := uint64(1); seq <= 10; seq++ {
		h.time.ch <- seq
		if err := step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	// Deadlines 3, 6 and 9.
	if h.led.toggles != 3 {
		t.Fatalf("toggles = %d, want 3", h.led.toggles)
	}
}

func TestBareArmFailureIsLogged(t *testing.T) {
	h := newTestHAL(nil)
	cfg := DefaultConfig()
	cfg.Bare = true
	b := newBare(h, cfg)
	b.arm(&b.blink)

	h.log.mu.Lock()
	defer h.log.mu.Unlock()
	last := h.log.lines[len(h.log.lines)-1]
	if !strings.HasPrefix(last, "bare: ") || !strings.Contains(last, "armed") {
		t.Fatalf("last log line = %q, want the arm error", last)
	}
}

func TestTakeRunes(t *testing.T) {
	tests := []struct {
		in         string
		n          int16
		head, tail string
	}{
		{"hello", 10, "hello", ""},
		{"hello", 2, "he", "llo"},
		{"ÿÿÿ", 2, "ÿÿ", "ÿ"},
		{"", 3, "", ""},
	}
	for _, tt := range tests {
		head, tail := takeRunes(tt.in, tt.n)
		if head != tt.head || tail != tt.tail {
			t.Fatalf("takeRunes(%q, %d) = %q, %q; want %q, %q", tt.in, tt.n, head, tail, tt.head, tt.tail)
		}
	}
}
