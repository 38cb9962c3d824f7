package app

import (
	"fmt"

	"ember/emberos/synctimer"
	"ember/emberos/tasks/heartbeat"
	"ember/hal"
	"ember/internal/buildinfo"
)

// statusPeriod is the interval of the bare loop's status line in ticks.
const statusPeriod = 5000

// bareSystem runs without a scheduler: every step drains the board tick
// stream into a counter and polls the timer list.
type bareSystem struct {
	h     hal.HAL
	clock synctimer.Counter
	seq   uint64
	polls uint64

	timers *synctimer.List
	blink  synctimer.Timer
	status synctimer.Timer
	on     bool
	fired  uint32
}

func newBare(h hal.HAL, cfg Config) *bareSystem {
	b := &bareSystem{h: h}
	b.timers = synctimer.New(&b.clock)

	period := cfg.HeartbeatPeriod
	if period == 0 {
		period = heartbeat.DefaultPeriod
	}
	b.blink = synctimer.Timer{Delay: period, Fn: b.toggle}
	b.status = synctimer.Timer{Delay: statusPeriod, Fn: b.report}
	b.arm(&b.blink)
	b.arm(&b.status)

	logLine(h, buildinfo.String()+" on "+h.Name()+", bare loop")
	return b
}

func (b *bareSystem) step() error {
	b.drain()
	b.timers.Poll()
	b.polls++
	return nil
}

func (b *bareSystem) drain() {
	ht := b.h.Time()
	if ht == nil {
		return
	}
	ch := ht.Ticks()
	if ch == nil {
		return
	}
	for {
		select {
		case seq := <-ch:
			if seq > b.seq {
				b.clock.Advance(uint32(seq - b.seq))
				b.seq = seq
			}
		default:
			return
		}
	}
}

func (b *bareSystem) toggle(t *synctimer.Timer) {
	b.on = !b.on
	b.fired++
	if led := b.h.LED(); led != nil {
		if b.on {
			led.High()
		} else {
			led.Low()
		}
	}
	b.arm(t)
}

func (b *bareSystem) report(t *synctimer.Timer) {
	logLine(b.h, fmt.Sprintf("bare: tick %d polls %d blinks %d", uint32(b.clock.Now()), b.polls, b.fired))
	b.arm(t)
}

func (b *bareSystem) arm(t *synctimer.Timer) {
	if err := b.timers.Add(t); err != nil {
		logLine(b.h, "bare: "+err.Error())
	}
}
