package kernel

import (
	"errors"
	"runtime"

	"ember/emberos/arch"
	"ember/emberos/clock"
)

// switchTo hands the CPU from the current process to next. The caller has
// already given the current process its new status and queue position.
func (k *Kernel) switchTo(next *Proc, kind arch.FrameKind) {
	prev := k.current
	if next == prev {
		prev.status = StatusRunning
		return
	}
	next.status = StatusRunning
	next.switches++
	k.current = next

	err := arch.Switch(prev.ctx, next.ctx, kind, k.cpu)
	if err == nil {
		return
	}
	if errors.Is(err, arch.ErrHalted) {
		runtime.Goexit()
	}
	k.current = prev
	if errors.Is(err, arch.ErrStackOverflow) {
		k.fatalf(prev, "stack overflow in %s", prev.name)
	}
	k.fatalf(prev, "context switch %s -> %s: %v", prev.name, next.name, err)
}

// block gives up the CPU after the current process left the RUNNING state.
func (k *Kernel) block() {
	next := k.ready.pop()
	if next == nil {
		k.fatalf(k.current, "ready queue empty")
	}
	k.switchTo(next, arch.FrameCall)
}

func (k *Kernel) yield() {
	k.mustBeProcess("yield")
	s := k.cpu.disable()
	cur := k.current
	cur.status = StatusReady
	cur.quantum = k.cfg.Quantum
	k.ready.pushBack(cur)
	k.switchTo(k.ready.pop(), arch.FrameCall)
	k.cpu.restore(s)
}

func (k *Kernel) wake(p *Proc) {
	p.status = StatusReady
	p.waitMask = 0
	p.wakeups++
	k.ready.pushBack(p)
	k.notePreempt(p)
}

// notePreempt records that p outranks the running process. Wakes from the
// tick handler or from process context are honoured at the next interrupt
// return or critical section exit; wakes from other handlers wait
// DeferredPreemptTicks.
func (k *Kernel) notePreempt(p *Proc) {
	cur := k.current
	if cur == nil || p.prio <= cur.prio {
		return
	}
	due := k.now
	if k.cpu.inInterrupt() && !k.inTickISR {
		due = k.now.Add(k.cfg.DeferredPreemptTicks)
	}
	k.requestPreempt(due)
}

func (k *Kernel) requestPreempt(due clock.Tick) {
	if !k.cfg.Preemptive {
		return
	}
	if !k.preemptReq || due.Before(k.preemptDue) {
		k.preemptDue = due
	}
	k.preemptReq = true
}

func (k *Kernel) preemptPoint(fromIRQ bool) {
	cur := k.current
	if cur == nil || cur.status != StatusRunning || k.dying || k.halted() {
		return
	}
	top := k.ready.top()
	if k.preemptReq && k.now.Reached(k.preemptDue) {
		k.preemptReq = false
		if top > cur.prio {
			k.preempt(cur, true, fromIRQ)
			return
		}
	}
	if fromIRQ && k.cfg.Preemptive && k.cfg.Quantum > 0 && cur != k.idle && cur.quantum == 0 {
		cur.quantum = k.cfg.Quantum
		if top >= cur.prio {
			k.preempt(cur, false, true)
		}
	}
}

// preempt switches away from a running process. A process displaced by a
// more urgent one goes back to the head of its band and keeps the rest of
// its quantum; one whose quantum ran out goes to the tail.
func (k *Kernel) preempt(cur *Proc, head, fromIRQ bool) {
	cur.status = StatusReady
	if head {
		k.ready.pushFront(cur)
	} else {
		k.ready.pushBack(cur)
	}
	kind := arch.FrameCall
	if fromIRQ {
		kind = arch.FrameException
	}
	k.switchTo(k.ready.pop(), kind)
}

func (k *Kernel) idleLoop(ctx *Context) error {
	for {
		k.checkHalt()
		if k.readyWaiting() {
			ctx.Yield()
			continue
		}
		if k.cfg.VirtualTime {
			k.RaiseTick()
		} else if !k.cpu.waitForInterrupt(k.halt) {
			k.checkHalt()
		}
		k.cpu.checkpoint()
	}
}

func (k *Kernel) readyWaiting() bool {
	s := k.cpu.disable()
	n := k.ready.len()
	k.cpu.restore(s)
	return n > 0
}

func (k *Kernel) halted() bool {
	select {
	case <-k.halt:
		return true
	default:
		return false
	}
}

// checkHalt ends the calling process goroutine once the kernel has halted.
func (k *Kernel) checkHalt() {
	if k.halted() {
		runtime.Goexit()
	}
}

func (k *Kernel) mustBeProcess(op string) {
	if k.cpu.inInterrupt() {
		k.fatalf(k.current, "%s from interrupt context", op)
	}
}
