//go:build !tinygo && cgo

package hal

import (
	"errors"
	"image"

	"ember/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow starts a desktop window that displays the framebuffer.
// It blocks until the window closes or the app stops.
func RunWindow(newApp func(HAL) func() error, board HostConfig) error {
	h := newHost(board)
	step := newApp(h)

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle("ember (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	err := ebiten.RunGame(g)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	step    func() error
}

func (g *hostGame) Update() error {
	g.h.t.step()
	if g.step != nil {
		return g.step()
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	if fb.snapshotRGB565(g.scratch) {
		expandRGB565(g.img.Pix, g.scratch)
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
