//go:build tinygo && bootdebug

package app

import (
	"machine"
	"sync"
	"time"

	"ember/hal"
)

var (
	bootDiagMu   sync.Mutex
	bootDiagStep string
	bootDiagOnce sync.Once
)

func bootDiagSetStep(msg string) {
	bootDiagMu.Lock()
	bootDiagStep = msg
	bootDiagMu.Unlock()
}

// bootDiagStart repeats the current boot step on the log and USB CDC until
// power off, so a hang before the scheduler starts stays visible.
func bootDiagStart(h hal.HAL) {
	if h == nil {
		return
	}
	bootDiagOnce.Do(func() {
		l := h.Logger()
		go func() {
			for {
				bootDiagMu.Lock()
				step := bootDiagStep
				bootDiagMu.Unlock()

				if step == "" {
					step = "<empty>"
				}
				line := "bootdiag: " + step
				if l != nil {
					l.WriteLineString(line)
				}
				if usb := machine.USBCDC; usb != nil {
					_, _ = usb.Write([]byte(line + "\r\n"))
				}
				time.Sleep(250 * time.Millisecond)
			}
		}()
	})
}
