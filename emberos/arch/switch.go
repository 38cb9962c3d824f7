package arch

import "fmt"

// Switch suspends the running context from and resumes to.
//
// It pushes a frame of the given kind onto from's stack recording the
// interrupt state held in cpu, stores from's cursor, unwinds to's frame,
// loads the interrupt state saved for to, and hands over the execution
// baton. It returns once some later Switch resumes from, or ErrHalted when
// the machine stops while from is parked. Any other error is returned
// before the baton moves.
func Switch(from, to *Context, kind FrameKind, cpu CPU) error {
	if err := from.Check(); err != nil {
		return err
	}
	pc := PCSwitch
	if kind == FrameException {
		pc = PCInterrupt
	}
	if err := from.pushFrame(kind, pc, 0, cpu.IRQState()); err != nil {
		return err
	}
	if err := to.enter(cpu); err != nil {
		return err
	}
	return from.park()
}

// Exit resumes to without saving from, which must never run again. The
// caller's goroutine is expected to return right after.
func Exit(from, to *Context, cpu CPU) error {
	if err := from.Check(); err != nil {
		return err
	}
	return to.enter(cpu)
}

func (c *Context) enter(cpu CPU) error {
	if err := c.Check(); err != nil {
		return err
	}
	f, err := c.popFrame()
	if err != nil {
		return err
	}
	cpu.SetIRQState(f.irq)

	switch f.pc {
	case PCTrampoline:
		if c.entry == nil {
			return fmt.Errorf("%w: trampoline frame without entry", ErrBadFrame)
		}
		go c.entry(f.arg)
		return nil
	case PCSwitch, PCInterrupt:
		select {
		case c.resume <- struct{}{}:
			return nil
		default:
			return ErrNotParked
		}
	default:
		return fmt.Errorf("%w: resume address %#x", ErrBadFrame, f.pc)
	}
}

func (c *Context) park() error {
	select {
	case <-c.resume:
		return nil
	case <-c.halt:
		return ErrHalted
	}
}
