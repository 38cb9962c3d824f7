package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"ember/emberos/kernel"
	"ember/hal"
	"ember/internal/fbdisplay"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	fatalLineHeight = 10
	fatalBaseline   = 8
)

// fatalScreen logs info to the board and paints it on the display. It runs
// on the failing kernel's fatal path and must not block.
func fatalScreen(h hal.HAL, info kernel.FatalInfo) {
	lines := fatalLines(info)
	if l := h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}

	disp := h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return
	}
	fb.ClearRGB(255, 255, 255)

	d := fbdisplay.New(fb)
	w, maxH := d.Size()
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	cols := w / int16(max(outboxWidth, 1))
	if cols <= 0 {
		cols = 1
	}

	fg := color.RGBA{A: 0xFF}
	y := int16(fatalBaseline)
	for _, line := range lines {
		for len(line) > 0 {
			if y > maxH {
				present(h, fb)
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 0, y, chunk, fg)
			y += fatalLineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	present(h, fb)
}

func present(h hal.HAL, fb hal.Framebuffer) {
	if err := fb.Present(); err != nil {
		logLine(h, "fatal: present: "+err.Error())
	}
}

var font = &proggy.TinySZ8pt7b

func fatalLines(info kernel.FatalInfo) []string {
	lines := []string{
		"ember fatal:",
		fmt.Sprintf("proc: %s (%d)", orNone(info.Proc), info.PID),
		fmt.Sprintf("tick: %d", uint32(info.Tick)),
		"reason: " + info.Reason,
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, strings.ReplaceAll(line, "\t", "  "))
	}
	return lines
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
