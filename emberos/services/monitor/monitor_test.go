package monitor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ember/emberos/kernel"
	"ember/hal"

	"tinygo.org/x/tinyfont"
)

type memFB struct {
	w, h     int
	buf      []byte
	presents int
}

func (f *memFB) Width() int              { return f.w }
func (f *memFB) Height() int             { return f.h }
func (f *memFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *memFB) StrideBytes() int        { return f.w * 2 }
func (f *memFB) Buffer() []byte          { return f.buf }
func (f *memFB) ClearRGB(r, g, b uint8)  { hal.FillRectRGB565(f, 0, 0, f.w, f.h, r, g, b) }

func (f *memFB) Present() error {
	f.presents++
	return nil
}

type memDisplay struct{ fb *memFB }

func (d memDisplay) Framebuffer() hal.Framebuffer { return d.fb }

func (f *memFB) litRows(y0, y1 int) int {
	n := 0
	for y := y0; y < y1; y++ {
		for x := 0; x < f.w; x++ {
			off := y*f.w*2 + x*2
			if f.buf[off] != 0 || f.buf[off+1] != 0 {
				n++
				break
			}
		}
	}
	return n
}

// rightmost returns the last lit column in rows [y0, y1), or -1.
func (f *memFB) rightmost(y0, y1 int) int {
	last := -1
	for y := y0; y < y1; y++ {
		for x := 0; x < f.w; x++ {
			off := y*f.w*2 + x*2
			if (f.buf[off] != 0 || f.buf[off+1] != 0) && x > last {
				last = x
			}
		}
	}
	return last
}

func TestSortRowsByPriorityThenPID(t *testing.T) {
	rows := []kernel.ProcInfo{
		{PID: 3, Priority: 2}, {PID: 0, Priority: 0}, {PID: 1, Priority: 5}, {PID: 2, Priority: 2},
	}
	sortRows(rows)
	var got []kernel.PID
	for _, r := range rows {
		got = append(got, r.PID)
	}
	want := []kernel.PID{1, 2, 3, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order=%v, want %v", got, want)
		}
	}
}

func TestFormatRow(t *testing.T) {
	row := formatRow(kernel.ProcInfo{PID: 4, Name: "a-very-long-process-name", Priority: 7, Status: kernel.StatusSleeping, Switches: 12, HighWater: 40, StackSize: 256})
	if !strings.HasPrefix(row, "  4 a-very-long-   7 sleeping") {
		t.Fatalf("row=%q", row)
	}
	if !strings.HasSuffix(row, "40/256") {
		t.Fatalf("row=%q", row)
	}
}

func TestNewWithoutFramebuffer(t *testing.T) {
	if s := New(nil, nil, "x"); s != nil {
		t.Fatalf("monitor created without display")
	}
}

func TestMonitorDrawsTableAndConsole(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.VirtualTime = true
	k, err := kernel.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	fb := &memFB{w: 320, h: 320, buf: make([]byte, 320*320*2)}
	s := New(k, memDisplay{fb: fb}, "ember")
	s.Period = 10
	if _, err := s.Spawn(2); err != nil {
		t.Fatal(err)
	}
	k.Spawn(kernel.ProcConfig{Name: "app", Priority: 1, Entry: func(ctx *kernel.Context) error {
		ctx.Sleep(25)
		s.Write([]byte("hello console\r\n"))
		ctx.Shutdown()
		return nil
	}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fb.presents < 3 {
		t.Fatalf("presents=%d, want at least 3 renders", fb.presents)
	}
	if fb.litRows(0, tableHeight) == 0 {
		t.Fatalf("table area empty")
	}
	if fb.litRows(tableHeight, fb.h) == 0 {
		t.Fatalf("console area empty")
	}
}

func TestConsoleScrollsPastOneScreen(t *testing.T) {
	fb := &memFB{w: 320, h: 320, buf: make([]byte, 320*320*2)}
	s := New(nil, memDisplay{fb: fb}, "ember")
	_, ch := s.console.Size()
	lines := int(ch/rowHeight) * 2
	for i := 0; i < lines; i++ {
		fmt.Fprintf(s, "line %d\r\n", i)
	}
	s.Write([]byte("last"))

	_, lastW := tinyfont.LineWidth(font, "last")
	_, prevW := tinyfont.LineWidth(font, fmt.Sprintf("line %d", lines-1))
	bottom := tableHeight + int(ch)
	if got := fb.rightmost(bottom-rowHeight, bottom); got < 0 || got > int(lastW)+1 {
		t.Fatalf("bottom console row ends at x=%d, want the last line (width %d)", got, lastW)
	}
	if got := fb.rightmost(bottom-2*rowHeight, bottom-rowHeight); got <= int(lastW)+1 || got > int(prevW)+1 {
		t.Fatalf("row above ends at x=%d, want line %d (width %d)", got, lines-1, prevW)
	}
}
