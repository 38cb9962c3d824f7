// Package arch implements the two mechanism-only pieces of the scheduler:
// the stack frame builder and the context switch primitive.
//
// Each process owns a caller-supplied region of machine words. Its stack
// pointer is an opaque cursor into that region and is written only by
// BuildFrame (once, at creation) and by Switch/Exit. Execution itself is
// carried by one goroutine per started context; exactly one of them holds
// the execution baton at any time and the others are parked inside Switch.
package arch

import "errors"

// Word is one machine word of a simulated stack.
type Word uint32

// Synthetic code addresses stored in return-address slots.
const (
	// PCTrampoline is the process entry trampoline.
	PCTrampoline Word = 0x0000_1001
	// PCExit catches a return from the trampoline.
	PCExit Word = 0x0000_1005
	// PCSwitch is the return address of a voluntary switch call.
	PCSwitch Word = 0x0000_2001
	// PCInterrupt is the interrupted instruction of a preempted context.
	PCInterrupt Word = 0x0000_3001
)

const (
	// GuardWord marks both extremities of every stack region.
	GuardWord Word = 0xDEAD_C0DE
	// PaintWord fills unused stack so the high-water mark can be measured.
	PaintWord Word = 0xA5A5_A5A5
	// FlagsFiller stands in for the status flags a call implicitly pushes.
	FlagsFiller Word = 0x0000_0080
	// ThumbPSR is the xPSR of a synthetic exception frame (thumb bit set).
	ThumbPSR Word = 0x0100_0000
)

// Frame tags, saved on top of every frame, tell Switch how to unwind it.
const (
	tagCall      Word = 0xFFFF_FFF1
	tagException Word = 0xFFFF_FFFD
)

// Register block slots.
const (
	slotTag = iota
	slotIRQ
	slotArg
	minRegs
)

var (
	ErrStackTooSmall = errors.New("arch: stack region too small")
	ErrStackOverflow = errors.New("arch: stack guard word corrupted")
	ErrStackBounds   = errors.New("arch: stack pointer out of region")
	ErrBadFrame      = errors.New("arch: corrupted frame")
	ErrBadLayout     = errors.New("arch: invalid layout")
	ErrNotParked     = errors.New("arch: resumed context is not parked")
	ErrHalted        = errors.New("arch: machine halted")
)

// FrameKind selects the resume path of a saved frame.
type FrameKind uint8

const (
	// FrameCall is left by a voluntary switch (software trap path).
	FrameCall FrameKind = iota
	// FrameException is left by a preemption at interrupt return.
	FrameException
)

func (k FrameKind) String() string {
	switch k {
	case FrameCall:
		return "call"
	case FrameException:
		return "exception"
	default:
		return "unknown"
	}
}

// CPU is the non-stack register state the switch saves and restores.
type CPU interface {
	IRQState() Word
	SetIRQState(Word)
}
