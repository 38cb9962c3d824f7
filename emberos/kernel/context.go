package kernel

import (
	"runtime"

	"ember/emberos/arch"
	"ember/emberos/clock"
)

// Context provides process-local access to kernel operations. It is only
// valid on the goroutine of the process it was handed to.
type Context struct {
	k   *Kernel
	p   *Proc
	arg arch.Word
}

// Kernel returns the kernel the process runs on.
func (c *Context) Kernel() *Kernel { return c.k }

// Self returns the calling process.
func (c *Context) Self() *Proc { return c.p }

// Arg returns the argument the process was spawned with.
func (c *Context) Arg() arch.Word { return c.arg }

// Now returns the current tick.
func (c *Context) Now() clock.Tick { return c.k.now }

// Yield moves the process to the tail of its priority band and runs the
// most urgent ready process, which may be the caller again.
func (c *Context) Yield() { c.k.yield() }

// Wait blocks until a signal in mask is pending and returns the bits it
// consumed. An empty mask is fatal.
func (c *Context) Wait(mask Signals) Signals { return c.k.wait(mask) }

// WaitTimeout is Wait bounded by ticks. It returns SigTimeout when no bit in
// mask arrived in time.
func (c *Context) WaitTimeout(mask Signals, ticks uint32) Signals {
	return c.k.waitTimeout(mask, ticks)
}

// Sleep blocks for ticks.
func (c *Context) Sleep(ticks uint32) {
	if ticks == 0 {
		c.Yield()
		return
	}
	c.k.waitTimeout(0, ticks)
}

// Send signals another process.
func (c *Context) Send(p *Proc, bits Signals) { c.k.Send(p, bits) }

// Checkpoint lets pending interrupts and preemption in. Long computations
// call it periodically.
func (c *Context) Checkpoint() {
	c.k.checkHalt()
	c.k.cpu.checkpoint()
}

// SetPriority changes the caller's priority.
func (c *Context) SetPriority(prio int) error { return c.k.SetPriority(c.p, prio) }

// Spawn creates another process.
func (c *Context) Spawn(cfg ProcConfig) (*Proc, error) { return c.k.Spawn(cfg) }

// Shutdown halts the kernel and does not return.
func (c *Context) Shutdown() {
	c.k.stop(nil)
	runtime.Goexit()
}
