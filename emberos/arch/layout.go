package arch

import "fmt"

// Layout describes how a CPU family lays out saved contexts.
type Layout struct {
	Name string

	// PushDown is true when pushes move toward lower addresses.
	PushDown bool
	// Full is true when the stack pointer rests on the last pushed word,
	// false when it rests on the next empty slot.
	Full bool

	// Regs is the number of words in the software-saved register block.
	Regs int
	// Filler is true when calls implicitly push status flags, so a fresh
	// frame needs a filler word under the return address.
	Filler bool
	// ExceptionFrame is the number of words hardware stacks on exception
	// entry (R0-R3, R12, LR, PC, xPSR on Cortex-M). Zero means interrupt
	// return unwinds the same shape as a call return.
	ExceptionFrame int

	// Headroom is the minimum number of free words kept for call depth.
	Headroom int
}

var (
	CortexM = Layout{Name: "cortex-m", PushDown: true, Full: true, Regs: 8, ExceptionFrame: 8, Headroom: 32}
	AVR     = Layout{Name: "avr", PushDown: true, Full: false, Regs: 32, Filler: true, Headroom: 16}
	MSP430  = Layout{Name: "msp430", PushDown: true, Full: true, Regs: 12, Filler: true, Headroom: 16}
	RISCV   = Layout{Name: "riscv", PushDown: true, Full: true, Regs: 14, Headroom: 24}
)

// Layouts lists the shipped layouts.
var Layouts = []Layout{CortexM, AVR, MSP430, RISCV}

// LayoutByName looks up a shipped layout.
func LayoutByName(name string) (Layout, error) {
	for _, l := range Layouts {
		if l.Name == name {
			return l, nil
		}
	}
	return Layout{}, fmt.Errorf("%w: unknown layout %q", ErrBadLayout, name)
}

// Validate reports whether l can hold a register block.
func (l Layout) Validate() error {
	if l.Regs < minRegs {
		return fmt.Errorf("%w: %s needs at least %d registers", ErrBadLayout, l.Name, minRegs)
	}
	if l.ExceptionFrame != 0 && l.ExceptionFrame < 3 {
		return fmt.Errorf("%w: %s exception frame too short", ErrBadLayout, l.Name)
	}
	return nil
}

func (l Layout) callFrameWords() int {
	n := l.Regs + 1
	if l.Filler {
		n++
	}
	return n
}

func (l Layout) exceptionFrameWords() int {
	if l.ExceptionFrame == 0 {
		return l.callFrameWords()
	}
	return l.Regs + l.ExceptionFrame
}

// FrameWords returns the size of the largest saved frame.
func (l Layout) FrameWords() int {
	return max(l.callFrameWords(), l.exceptionFrameWords())
}

// MinWords is the smallest region BuildFrame accepts, guard words included.
func (l Layout) MinWords() int {
	return 2 + l.FrameWords() + l.Headroom
}
