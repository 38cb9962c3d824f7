package arch

import "fmt"

// Context is one resumable execution context: a stack region, the cursor
// into it, and the parking spot of the goroutine that runs it.
type Context struct {
	mem    []Word
	layout Layout
	sp     int

	entry  func(arg Word)
	resume chan struct{}
	halt   <-chan struct{}
}

// FrameOptions parameterises BuildFrame.
type FrameOptions struct {
	// Entry is the process entry trampoline. It runs on a fresh goroutine
	// the first time the context is switched to.
	Entry func(arg Word)
	// Arg is passed to Entry through the argument register.
	Arg Word
	// Preemptible selects the hardware exception frame shape on layouts
	// that resume through exception return.
	Preemptible bool
	// Halt is closed when the machine stops; parked contexts then unwind.
	Halt <-chan struct{}
}

// Attach adopts a region for a context that is already running, such as
// the boot stack. No initial frame is built.
func Attach(mem []Word, l Layout, halt <-chan struct{}) (*Context, error) {
	return newContext(mem, l, halt)
}

// BuildFrame prepares mem so that the first Switch to the returned context
// enters opts.Entry with opts.Arg, as if the context had been suspended.
func BuildFrame(mem []Word, l Layout, opts FrameOptions) (*Context, error) {
	if opts.Entry == nil {
		return nil, fmt.Errorf("%w: nil entry", ErrBadFrame)
	}
	c, err := newContext(mem, l, opts.Halt)
	if err != nil {
		return nil, err
	}
	c.entry = opts.Entry

	kind := FrameCall
	if opts.Preemptible && l.ExceptionFrame > 0 {
		kind = FrameException
	}
	// Fresh frames resume with interrupts masked, exactly like a context
	// coming back from a voluntary switch.
	if err := c.pushFrame(kind, PCTrampoline, opts.Arg, 0); err != nil {
		return nil, err
	}
	return c, nil
}

func newContext(mem []Word, l Layout, halt <-chan struct{}) (*Context, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(mem) < l.MinWords() {
		return nil, fmt.Errorf("%w: %d words, %s needs %d", ErrStackTooSmall, len(mem), l.Name, l.MinWords())
	}
	for i := range mem {
		mem[i] = PaintWord
	}
	mem[0] = GuardWord
	mem[len(mem)-1] = GuardWord

	c := &Context{
		mem:    mem,
		layout: l,
		resume: make(chan struct{}, 1),
		halt:   halt,
	}
	switch {
	case l.PushDown && l.Full:
		c.sp = len(mem) - 1
	case l.PushDown:
		c.sp = len(mem) - 2
	case l.Full:
		c.sp = 0
	default:
		c.sp = 1
	}
	return c, nil
}

// Layout returns the context's CPU layout.
func (c *Context) Layout() Layout { return c.layout }

// SP returns the opaque stack cursor (a word index into the region).
func (c *Context) SP() int { return c.sp }

// Words returns the size of the region.
func (c *Context) Words() int { return len(c.mem) }

// Check validates the guard words and the cursor.
func (c *Context) Check() error {
	n := len(c.mem)
	if c.mem[0] != GuardWord || c.mem[n-1] != GuardWord {
		return ErrStackOverflow
	}
	if c.sp < 0 || c.sp > n-1 {
		return ErrStackBounds
	}
	return nil
}

// HighWater returns the deepest number of words ever used.
func (c *Context) HighWater() int {
	n := len(c.mem)
	if c.layout.PushDown {
		for i := 1; i <= n-2; i++ {
			if c.mem[i] != PaintWord {
				return n - 1 - i
			}
		}
		return 0
	}
	for i := n - 2; i >= 1; i-- {
		if c.mem[i] != PaintWord {
			return i
		}
	}
	return 0
}

// Depth returns the number of words currently on the stack.
func (c *Context) Depth() int {
	n := len(c.mem)
	switch {
	case c.layout.PushDown && c.layout.Full:
		return n - 1 - c.sp
	case c.layout.PushDown:
		return n - 2 - c.sp
	case c.layout.Full:
		return c.sp
	default:
		return c.sp - 1
	}
}

func (c *Context) step() int {
	if c.layout.PushDown {
		return -1
	}
	return 1
}

func (c *Context) push(w Word) error {
	i := c.sp
	if c.layout.Full {
		i += c.step()
	}
	if i < 1 || i > len(c.mem)-2 {
		return ErrStackOverflow
	}
	c.mem[i] = w
	if c.layout.Full {
		c.sp = i
	} else {
		c.sp = i + c.step()
	}
	return nil
}

func (c *Context) pop() (Word, error) {
	i := c.sp
	if !c.layout.Full {
		i -= c.step()
	}
	if i < 1 || i > len(c.mem)-2 {
		return 0, ErrStackBounds
	}
	w := c.mem[i]
	if c.layout.Full {
		c.sp = i - c.step()
	} else {
		c.sp = i
	}
	return w, nil
}

// pushFrame saves one frame. The register block goes on last with the tag
// on top, so popFrame learns the shape before unwinding the rest.
func (c *Context) pushFrame(kind FrameKind, pc, arg, irq Word) error {
	l := c.layout
	if kind == FrameException && l.ExceptionFrame > 0 {
		hw := make([]Word, l.ExceptionFrame)
		hw[0] = arg
		hw[len(hw)-3] = PCExit
		hw[len(hw)-2] = pc
		hw[len(hw)-1] = ThumbPSR
		for i := len(hw) - 1; i >= 0; i-- {
			if err := c.push(hw[i]); err != nil {
				return err
			}
		}
	} else {
		if l.Filler {
			if err := c.push(FlagsFiller); err != nil {
				return err
			}
		}
		if err := c.push(pc); err != nil {
			return err
		}
	}

	regs := make([]Word, l.Regs)
	regs[slotTag] = tagCall
	if kind == FrameException {
		regs[slotTag] = tagException
	}
	regs[slotIRQ] = irq
	regs[slotArg] = arg
	for i := len(regs) - 1; i >= 0; i-- {
		if err := c.push(regs[i]); err != nil {
			return err
		}
	}
	return nil
}

type frame struct {
	kind FrameKind
	pc   Word
	arg  Word
	irq  Word
}

func (c *Context) popFrame() (frame, error) {
	l := c.layout
	regs := make([]Word, l.Regs)
	for i := range regs {
		w, err := c.pop()
		if err != nil {
			return frame{}, err
		}
		regs[i] = w
	}

	f := frame{irq: regs[slotIRQ], arg: regs[slotArg]}
	switch regs[slotTag] {
	case tagCall:
		f.kind = FrameCall
	case tagException:
		f.kind = FrameException
	default:
		return frame{}, fmt.Errorf("%w: tag %#x", ErrBadFrame, regs[slotTag])
	}

	if f.kind == FrameException && l.ExceptionFrame > 0 {
		hw := make([]Word, l.ExceptionFrame)
		for i := range hw {
			w, err := c.pop()
			if err != nil {
				return frame{}, err
			}
			hw[i] = w
		}
		if hw[len(hw)-1] != ThumbPSR {
			return frame{}, fmt.Errorf("%w: xPSR %#x", ErrBadFrame, hw[len(hw)-1])
		}
		f.pc = hw[len(hw)-2]
		f.arg = hw[0]
		return f, nil
	}

	pc, err := c.pop()
	if err != nil {
		return frame{}, err
	}
	f.pc = pc
	if l.Filler {
		if _, err := c.pop(); err != nil {
			return frame{}, err
		}
	}
	return f, nil
}

// Owns reports whether mem is the region backing c.
func (c *Context) Owns(mem []Word) bool {
	return len(mem) > 0 && &mem[0] == &c.mem[0]
}
