package kernel

import (
	"sync/atomic"

	"ember/emberos/arch"
)

// IRQ identifies an interrupt line of the simulated core.
type IRQ uint8

const (
	// IRQTick is the periodic system tick.
	IRQTick IRQ = iota
	// IRQSoft delivers signals posted by foreign goroutines.
	IRQSoft
	// IRQUser is the first line free for board devices.
	IRQUser

	maxIRQ = 32
)

// IRQState is a saved interrupt-enable state returned by DisableInterrupts.
type IRQState arch.Word

const (
	irqDisabled IRQState = 0
	irqEnabled  IRQState = 1
)

// cpu models one core's interrupt controller.
//
// Lines may be raised from any goroutine. Handlers only ever run on the
// goroutine that holds the execution baton, and only while interrupts are
// enabled: when a critical section re-enables them, at a checkpoint, or
// while the idle process waits for an interrupt. Handlers run with
// interrupts disabled and never nest.
type cpu struct {
	pending  atomic.Uint32
	doorbell chan struct{}

	enabled bool
	depth   int

	handlers [maxIRQ]func()

	// halt freezes the interrupt state once the machine stops, so
	// goroutines unwinding after a halt leave it alone.
	halt <-chan struct{}

	// preemptPoint runs after interrupts become enabled again, either at
	// the end of a critical section or at interrupt return.
	preemptPoint func(fromIRQ bool)
}

func newCPU(halt <-chan struct{}) *cpu {
	return &cpu{doorbell: make(chan struct{}, 1), halt: halt}
}

func (c *cpu) halted() bool {
	select {
	case <-c.halt:
		return true
	default:
		return false
	}
}

func (c *cpu) IRQState() arch.Word {
	if c.enabled {
		return arch.Word(irqEnabled)
	}
	return arch.Word(irqDisabled)
}

// SetIRQState is used by the switch primitive only; it never services
// pending lines, the resumed context does that itself.
func (c *cpu) SetIRQState(w arch.Word) { c.enabled = IRQState(w) == irqEnabled }

func (c *cpu) raise(line IRQ) {
	bit := uint32(1) << line
	for {
		old := c.pending.Load()
		if old&bit != 0 || c.pending.CompareAndSwap(old, old|bit) {
			break
		}
	}
	select {
	case c.doorbell <- struct{}{}:
	default:
	}
}

func (c *cpu) disable() IRQState {
	if c.halted() {
		return irqDisabled
	}
	s := irqDisabled
	if c.enabled {
		s = irqEnabled
	}
	c.enabled = false
	return s
}

func (c *cpu) restore(s IRQState) {
	if c.halted() {
		return
	}
	if s != irqEnabled {
		c.enabled = false
		return
	}
	if c.enabled {
		return
	}
	c.enabled = true
	c.checkpoint()
}

// checkpoint takes pending interrupts and honours pending preemption.
func (c *cpu) checkpoint() {
	if !c.enabled || c.depth > 0 || c.halted() {
		return
	}
	c.poll()
	if c.preemptPoint != nil {
		c.preemptPoint(false)
	}
}

func (c *cpu) poll() {
	for c.enabled && c.depth == 0 && c.pending.Load() != 0 && !c.halted() {
		c.service()
	}
}

func (c *cpu) service() {
	c.enabled = false
	c.depth++
	for {
		bits := c.pending.Swap(0)
		if bits == 0 {
			break
		}
		for line := 0; bits != 0; line, bits = line+1, bits>>1 {
			if bits&1 == 0 {
				continue
			}
			if h := c.handlers[line]; h != nil {
				h()
			}
		}
	}
	c.depth--
	c.enabled = true

	// Interrupt return: a preemption switch taken here saves an exception
	// frame with interrupts enabled and comes back to this point.
	if c.preemptPoint != nil {
		c.preemptPoint(true)
	}
}

// waitForInterrupt blocks until a line is pending. It reports false when
// halt closes first.
func (c *cpu) waitForInterrupt(halt <-chan struct{}) bool {
	for c.pending.Load() == 0 {
		select {
		case <-c.doorbell:
		case <-halt:
			return false
		}
	}
	return true
}

func (c *cpu) inInterrupt() bool { return c.depth > 0 }
