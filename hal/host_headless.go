//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStop, returned by an app step, ends a runner without error.
var ErrStop = errors.New("hal: stop")

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz is the frame rate of the runner loop; each frame publishes the
	// ticks that elapsed and calls the app step once.
	Hz int
	// Frames stops the runner after that many frames. 0 runs until the
	// context ends or the app stops.
	Frames uint64
	Board  HostConfig
}

// RunHeadless runs the OS without opening a window.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}

	h := newHost(cfg.Board)
	step := newApp(h)

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var frame uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.t.step()
			if step != nil {
				if err := step(); err != nil {
					if errors.Is(err, ErrStop) {
						return nil
					}
					return err
				}
			}
			frame++
			if cfg.Frames > 0 && frame >= cfg.Frames {
				return nil
			}
		}
	}
}
