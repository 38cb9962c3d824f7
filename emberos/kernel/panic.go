package kernel

import (
	"fmt"
	"runtime"

	"ember/emberos/clock"
)

// FatalInfo describes the error that halted the kernel.
type FatalInfo struct {
	PID    PID
	Proc   string
	Reason string
	Tick   clock.Tick
	Stack  []byte
}

func (i FatalInfo) Error() string {
	if i.Proc == "" {
		return "fatal: " + i.Reason
	}
	return fmt.Sprintf("fatal in %s: %s", i.Proc, i.Reason)
}

// report records the first fatal error and halts the kernel.
func (k *Kernel) report(p *Proc, reason string) {
	k.fatalOnce.Do(func() {
		k.dying = true
		info := FatalInfo{Reason: reason, Tick: k.now, Stack: captureStack()}
		if p != nil {
			info.PID = p.pid
			info.Proc = p.name
		}
		k.logf("%s", info.Error())
		if fn := k.cfg.OnFatal; fn != nil {
			fn(info)
		}
		k.stop(fmt.Errorf("%w: %s", ErrFatal, reason))
	})
}

// fatalf reports and, once the kernel is running, ends the calling
// goroutine.
func (k *Kernel) fatalf(p *Proc, format string, args ...any) {
	k.report(p, fmt.Sprintf(format, args...))
	if k.started.Load() {
		runtime.Goexit()
	}
}
