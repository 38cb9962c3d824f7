// Package heartbeat blinks the board LED from a periodic timer softint.
package heartbeat

import (
	"ember/emberos/kernel"
	"ember/hal"
)

// DefaultPeriod is the half-period of the blink in ticks.
const DefaultPeriod = 500

const sigBeat kernel.Signals = 1 << 0

type Task struct {
	k      *kernel.Kernel
	led    hal.LED
	period uint32

	self  *kernel.Proc
	timer kernel.Timer
	on    bool
	beats uint32
}

// New returns a heartbeat toggling led every period ticks. 0 selects
// DefaultPeriod.
func New(k *kernel.Kernel, led hal.LED, period uint32) *Task {
	if period == 0 {
		period = DefaultPeriod
	}
	return &Task{k: k, led: led, period: period}
}

func (t *Task) Spawn(prio int) (*kernel.Proc, error) {
	p, err := t.k.Spawn(kernel.ProcConfig{Name: "heartbeat", Priority: prio, Entry: t.run})
	if err != nil {
		return nil, err
	}
	t.self = p
	return p, nil
}

// Beats returns the number of LED transitions driven so far. Call it from
// process context or after the kernel halted.
func (t *Task) Beats() uint32 { return t.beats }

// beat runs in the tick handler.
func (t *Task) beat(tm *kernel.Timer) {
	t.on = !t.on
	t.k.Send(t.self, sigBeat)
	t.k.AddTimer(tm)
}

func (t *Task) run(ctx *kernel.Context) error {
	t.timer = kernel.Timer{Delay: t.period, Action: kernel.SoftIRQ(t.beat)}
	t.k.AddTimer(&t.timer)

	for {
		ctx.Wait(sigBeat)

		s := ctx.Kernel().DisableInterrupts()
		on := t.on
		t.beats++
		ctx.Kernel().RestoreInterrupts(s)

		if t.led == nil {
			continue
		}
		if on {
			t.led.High()
		} else {
			t.led.Low()
		}
	}
}
