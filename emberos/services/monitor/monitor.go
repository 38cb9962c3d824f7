// Package monitor draws the live process table and a log console on the
// board display.
package monitor

import (
	"fmt"
	"image/color"

	"ember/emberos/clock"
	"ember/emberos/kernel"
	"ember/hal"
	"ember/internal/fbdisplay"

	"golang.org/x/exp/slices"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	rowHeight   = 10
	baseline    = 8
	tableRows   = 16
	tableHeight = rowHeight * (tableRows + 2)
)

var (
	font = &proggy.TinySZ8pt7b

	fg     = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	accent = color.RGBA{R: 0x40, G: 0xC0, B: 0xFF, A: 0xFF}
	bg     = color.RGBA{A: 0xFF}
)

// Service renders every Period ticks.
type Service struct {
	k     *kernel.Kernel
	fb    hal.Framebuffer
	title string

	// Period is the refresh interval in ticks.
	Period uint32

	table   *fbdisplay.Display
	console *fbdisplay.Display
	term    *tinyterm.Terminal

	rows []kernel.ProcInfo
}

// New returns nil when the board has no framebuffer.
func New(k *kernel.Kernel, d hal.Display, title string) *Service {
	if d == nil || d.Framebuffer() == nil {
		return nil
	}
	fb := d.Framebuffer()
	root := fbdisplay.New(fb)
	w, h := root.Size()
	// The terminal wraps its row ring at a whole number of lines.
	ch := (h - tableHeight) / rowHeight * rowHeight
	s := &Service{
		k:       k,
		fb:      fb,
		title:   title,
		Period:  250,
		table:   root.Window(0, 0, w, tableHeight),
		console: root.Window(0, tableHeight, w, ch),
	}
	s.term = tinyterm.NewTerminal(s.console)
	s.term.Configure(&tinyterm.Config{
		Font:       font,
		FontHeight: rowHeight,
		FontOffset: baseline,
	})
	return s
}

// Spawn starts the monitor process.
func (s *Service) Spawn(prio int) (*kernel.Proc, error) {
	return s.k.Spawn(kernel.ProcConfig{Name: "monitor", Priority: prio, Entry: s.run})
}

// Write prints to the console area. It must be called from process
// context.
func (s *Service) Write(p []byte) (int, error) {
	return s.term.Write(p)
}

func (s *Service) run(ctx *kernel.Context) error {
	s.fb.ClearRGB(0, 0, 0)
	for {
		s.Render(ctx.Now())
		ctx.Sleep(s.Period)
	}
}

// Render redraws the table.
func (s *Service) Render(now clock.Tick) {
	s.rows = s.k.Snapshot(s.rows[:0])
	sortRows(s.rows)

	s.table.Clear(bg)
	tinyfont.WriteLine(s.table, font, 0, baseline, fmt.Sprintf("%s  tick %d", s.title, uint32(now)), accent)
	tinyfont.WriteLine(s.table, font, 0, baseline+rowHeight, header, accent)
	for i, r := range s.rows {
		if i >= tableRows {
			break
		}
		tinyfont.WriteLine(s.table, font, 0, int16(baseline+rowHeight*(i+2)), formatRow(r), fg)
	}
	s.fb.Present()
}

const header = "PID NAME         PRI STATE     SW    STACK"

func formatRow(r kernel.ProcInfo) string {
	return fmt.Sprintf("%3d %-12.12s %3d %-8s %5d %4d/%d", r.PID, r.Name, r.Priority, r.Status, r.Switches, r.HighWater, r.StackSize)
}

// sortRows orders by priority, most urgent first, then by PID.
func sortRows(rows []kernel.ProcInfo) {
	slices.SortStableFunc(rows, func(a, b kernel.ProcInfo) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return int(a.PID) - int(b.PID)
	})
}
