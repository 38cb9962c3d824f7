// Package synctimer is the polling variant of the kernel's software timers
// for systems that run without a scheduler or tick interrupt: the owner
// calls Poll from its main loop and callbacks run there.
package synctimer

import (
	"errors"

	"ember/emberos/clock"
	"ember/emberos/internal/dlist"
)

var ErrArmed = errors.New("synctimer: timer already armed")

// Clock supplies the current tick.
type Clock interface {
	Now() clock.Tick
}

// Timer is a one-shot polled timer. The caller owns the storage.
type Timer struct {
	Delay uint32
	Fn    func(t *Timer)

	node dlist.Node[*Timer]
}

// Armed reports whether t is waiting to fire.
func (t *Timer) Armed() bool { return t.node.Linked() }

// Deadline is the absolute tick t fires at.
func (t *Timer) Deadline() clock.Tick { return t.node.Deadline() }

// List holds armed timers in deadline order.
type List struct {
	clock Clock
	l     dlist.List[*Timer]
}

func New(c Clock) *List {
	return &List{clock: c}
}

// Add arms t to fire Delay ticks from now.
func (l *List) Add(t *Timer) error {
	if t.node.Linked() {
		return ErrArmed
	}
	t.node.Value = t
	l.l.Insert(&t.node, l.clock.Now().Add(max(t.Delay, 1)))
	return nil
}

// Abort disarms t and reports whether it was armed.
func (l *List) Abort(t *Timer) bool { return l.l.Remove(&t.node) }

// Len returns the number of armed timers.
func (l *List) Len() int { return l.l.Len() }

// Next returns the earliest deadline.
func (l *List) Next() (clock.Tick, bool) {
	n := l.l.Front()
	if n == nil {
		return 0, false
	}
	return n.Deadline(), true
}

// Poll fires every due timer in deadline order and returns how many
// fired. A callback may abort a timer that is also due, which then does
// not fire, or re-arm its own timer, which fires on a later Poll at the
// earliest.
func (l *List) Poll() int {
	now := l.clock.Now()
	fired := 0
	for n := l.l.PopExpired(now); n != nil; n = l.l.PopExpired(now) {
		fired++
		if t := n.Value; t.Fn != nil {
			t.Fn(t)
		}
	}
	return fired
}

// Counter is a Clock advanced explicitly by its owner.
type Counter struct {
	now clock.Tick
}

func (c *Counter) Now() clock.Tick { return c.now }

// Advance moves the counter forward by n ticks.
func (c *Counter) Advance(n uint32) { c.now = c.now.Add(n) }
