package kernel

import (
	"ember/emberos/clock"
	"ember/emberos/internal/dlist"
)

// TimerState is the lifecycle of a Timer.
type TimerState uint8

const (
	TimerIdle TimerState = iota
	TimerArmed
	TimerExpired
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerArmed:
		return "armed"
	case TimerExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Action is what a timer does when it expires: SoftIRQ or Notify.
type Action interface {
	timerAction()
}

// SoftIRQ runs a callback in the tick interrupt handler. The callback may
// re-arm its timer.
type SoftIRQ func(t *Timer)

// Notify sends Bits to Proc.
type Notify struct {
	Proc *Proc
	Bits Signals
}

func (SoftIRQ) timerAction() {}
func (Notify) timerAction()  {}

// Timer is a one-shot software timer. The zero value is idle; the caller
// owns the storage and must keep it alive while armed.
type Timer struct {
	// Delay is counted in ticks from the moment the timer is added. A zero
	// delay expires on the next tick.
	Delay  uint32
	Action Action

	state TimerState
	node  dlist.Node[*Timer]
}

func (t *Timer) State() TimerState { return t.state }

// Deadline is the absolute expiry tick of an armed or expired timer.
func (t *Timer) Deadline() clock.Tick { return t.node.Deadline() }

// AddTimer arms t to expire Delay ticks from now. Timers with the same
// deadline fire in the order they were added. Adding an armed timer is
// fatal. Interrupt-safe.
func (k *Kernel) AddTimer(t *Timer) {
	s := k.cpu.disable()
	k.addTimer(t)
	k.cpu.restore(s)
}

func (k *Kernel) addTimer(t *Timer) {
	if t.state == TimerArmed {
		k.fatalf(k.current, "timer armed twice")
		return
	}
	t.node.Value = t
	k.timers.Insert(&t.node, k.now.Add(max(t.Delay, 1)))
	t.state = TimerArmed
}

// AbortTimer disarms t. It reports whether t was armed; aborting an idle
// or expired timer does nothing. Interrupt-safe.
func (k *Kernel) AbortTimer(t *Timer) bool {
	s := k.cpu.disable()
	ok := k.abortTimer(t)
	k.cpu.restore(s)
	return ok
}

func (k *Kernel) abortTimer(t *Timer) bool {
	if !k.timers.Remove(&t.node) {
		return false
	}
	t.state = TimerIdle
	return true
}

// pollTimers fires every timer whose deadline has been reached. It runs in
// the tick handler.
func (k *Kernel) pollTimers() {
	for {
		n := k.timers.PopExpired(k.now)
		if n == nil {
			return
		}
		t := n.Value
		t.state = TimerExpired
		k.fire(t)
	}
}

func (k *Kernel) fire(t *Timer) {
	switch a := t.Action.(type) {
	case SoftIRQ:
		a(t)
	case Notify:
		k.send(a.Proc, a.Bits)
	default:
		k.fatalf(k.current, "timer with unknown action %T", t.Action)
	}
}

// NextDeadline returns the earliest armed deadline.
func (k *Kernel) NextDeadline() (clock.Tick, bool) {
	s := k.cpu.disable()
	defer k.cpu.restore(s)
	n := k.timers.Front()
	if n == nil {
		return 0, false
	}
	return n.Deadline(), true
}
