package app

import (
	"image/color"

	"ember/hal"
	"ember/internal/buildinfo"
	"ember/internal/fbdisplay"

	"tinygo.org/x/tinyfont"
)

func bootScreen(h hal.HAL, step string) {
	bootDiagSetStep(step)
	if h == nil {
		return
	}
	disp := h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return
	}

	fb.ClearRGB(0, 0, 0)
	d := fbdisplay.New(fb)
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	tinyfont.WriteLine(d, font, 0, 12, "ember boot "+buildinfo.Short(), fg)
	tinyfont.WriteLine(d, font, 0, 28, step, fg)
	if err := fb.Present(); err != nil {
		logLine(h, "boot: present: "+err.Error())
	}
}
