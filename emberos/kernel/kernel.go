// Package kernel is a preemptive priority scheduler for a single simulated
// core: process control blocks, a banded ready queue, inter-process
// signals, software timers and the tick/interrupt model that drives them.
//
// Kernel state is owned by whichever context holds the execution baton.
// Methods marked interrupt-safe may be called from processes and from
// interrupt handlers. Only Post, Raise, RaiseTick, TickTo and Now may be
// called from foreign goroutines.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"ember/emberos/arch"
	"ember/emberos/clock"
	"ember/emberos/internal/dlist"
)

const (
	// MaxProcs bounds the process table, idle included.
	MaxProcs = 32
	// MaxPriority is the most urgent priority. Priority 0 belongs to idle.
	MaxPriority = 31

	// DefaultStackWords is the stack size Spawn allocates when the caller
	// supplies no region.
	DefaultStackWords = 256
)

var (
	ErrBadPriority  = errors.New("kernel: priority out of range")
	ErrTooManyProcs = errors.New("kernel: process table full")
	ErrNoEntry      = errors.New("kernel: nil entry")
	ErrStackInUse   = errors.New("kernel: stack region already owns a process")
	ErrStarted      = errors.New("kernel: already running")
	ErrFatal        = errors.New("kernel: fatal error")
	ErrBadIRQ       = errors.New("kernel: reserved or invalid interrupt line")

	// ErrRestart, returned by an entry function, runs the entry again
	// instead of terminating the process.
	ErrRestart = errors.New("kernel: restart process")
)

// Logger receives kernel debug lines. hal.Logger satisfies it.
type Logger interface {
	WriteLineString(s string)
}

// Config parameterises a Kernel.
type Config struct {
	// Layout selects the stack frame shape of every process.
	Layout arch.Layout

	// Preemptive enables involuntary switches at interrupt return. When
	// false a process only loses the CPU by yielding or blocking.
	Preemptive bool

	// Quantum is the number of ticks a process may run before an
	// equal-priority peer gets the CPU. 0 disables time slicing.
	Quantum uint32

	// DeferredPreemptTicks delays preemption requested by a non-tick
	// interrupt handler until that many ticks have passed. 0 preempts at
	// the handler's own interrupt return.
	DeferredPreemptTicks uint32

	// VirtualTime lets the idle process advance the tick counter itself
	// instead of waiting for an external tick source.
	VirtualTime bool

	// IdleStackWords sizes the idle process stack.
	IdleStackWords int

	// OnFatal is invoked once, on the first fatal error, before the kernel
	// halts. It must not block.
	OnFatal func(FatalInfo)
}

// DefaultConfig returns a preemptive Cortex-M configuration.
func DefaultConfig() Config {
	return Config{
		Layout:               arch.CortexM,
		Preemptive:           true,
		Quantum:              10,
		DeferredPreemptTicks: 1,
		IdleStackWords:       arch.CortexM.MinWords(),
	}
}

// Kernel is one scheduler instance.
type Kernel struct {
	cfg Config
	cpu *cpu
	log Logger

	now     clock.Tick
	nowSeen atomic.Uint32

	tickBacklog atomic.Uint32
	tickSeq     atomic.Uint64

	procs   [MaxProcs]*Proc
	nprocs  int
	current *Proc
	idle    *Proc
	ready   readyQueue
	timers  dlist.List[*Timer]

	inTickISR  bool
	preemptReq bool
	preemptDue clock.Tick
	dying      bool

	boot    *arch.Context
	started atomic.Bool

	halt     chan struct{}
	haltOnce sync.Once
	mu       sync.Mutex
	cause    error

	fatalOnce sync.Once
}

// New creates a kernel and its idle process.
func New(cfg Config) (*Kernel, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.IdleStackWords < cfg.Layout.MinWords() {
		cfg.IdleStackWords = cfg.Layout.MinWords()
	}

	halt := make(chan struct{})
	k := &Kernel{
		cfg:  cfg,
		cpu:  newCPU(halt),
		halt: halt,
	}
	k.cpu.preemptPoint = k.preemptPoint
	k.cpu.handlers[IRQTick] = k.tickISR
	k.cpu.handlers[IRQSoft] = k.softISR

	boot, err := arch.Attach(make([]arch.Word, cfg.Layout.MinWords()), cfg.Layout, k.halt)
	if err != nil {
		return nil, err
	}
	k.boot = boot

	idle, err := k.spawn(ProcConfig{
		Name:  "idle",
		Stack: make([]arch.Word, cfg.IdleStackWords),
		Entry: k.idleLoop,
	}, 0)
	if err != nil {
		return nil, err
	}
	k.idle = idle
	return k, nil
}

// SetLogger installs a sink for kernel debug lines.
func (k *Kernel) SetLogger(l Logger) { k.log = l }

// Config returns the configuration the kernel runs with.
func (k *Kernel) Config() Config { return k.cfg }

func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf("kernel: "+format, args...))
}

// Run boots the scheduler and blocks until the kernel halts. It returns nil
// after Shutdown, ctx.Err() when ctx ends first, or an error wrapping
// ErrFatal.
func (k *Kernel) Run(ctx context.Context) error {
	if !k.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	stop := context.AfterFunc(ctx, func() { k.stop(ctx.Err()) })
	defer stop()

	if k.halted() {
		return k.haltCause()
	}

	first := k.ready.pop()
	first.status = StatusRunning
	first.switches++
	k.current = first
	k.logf("boot layout=%s preemptive=%t quantum=%d first=%s", k.cfg.Layout.Name, k.cfg.Preemptive, k.cfg.Quantum, first.name)

	err := arch.Switch(k.boot, first.ctx, arch.FrameCall, k.cpu)
	if err != nil && !errors.Is(err, arch.ErrHalted) {
		k.report(first, fmt.Sprintf("boot switch: %v", err))
	}
	<-k.halt
	return k.haltCause()
}

// Shutdown halts the kernel with a nil cause. It is safe from any
// goroutine; processes use Context.Shutdown instead.
func (k *Kernel) Shutdown() { k.stop(nil) }

// Done is closed when the kernel halts.
func (k *Kernel) Done() <-chan struct{} { return k.halt }

func (k *Kernel) stop(cause error) {
	k.haltOnce.Do(func() {
		k.mu.Lock()
		k.cause = cause
		k.mu.Unlock()
		close(k.halt)
	})
}

func (k *Kernel) haltCause() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cause
}

// Now returns the tick counter. It is safe from any goroutine.
func (k *Kernel) Now() clock.Tick { return clock.Tick(k.nowSeen.Load()) }

// DisableInterrupts opens a critical section. Sections nest.
func (k *Kernel) DisableInterrupts() IRQState { return k.cpu.disable() }

// RestoreInterrupts closes a critical section opened by DisableInterrupts.
func (k *Kernel) RestoreInterrupts(s IRQState) { k.cpu.restore(s) }

// InInterrupt reports whether an interrupt handler is running.
func (k *Kernel) InInterrupt() bool { return k.cpu.inInterrupt() }

// Current returns the running process.
func (k *Kernel) Current() *Proc { return k.current }

// Idle returns the idle process.
func (k *Kernel) Idle() *Proc { return k.idle }

// HandleIRQ installs fn as the handler of a board interrupt line. It must
// be called before Run or from process context.
func (k *Kernel) HandleIRQ(line IRQ, fn func()) error {
	if line < IRQUser || line >= maxIRQ {
		return fmt.Errorf("%w: %d", ErrBadIRQ, line)
	}
	s := k.cpu.disable()
	k.cpu.handlers[line] = fn
	k.cpu.restore(s)
	return nil
}

// Raise marks an interrupt line pending. It is safe from any goroutine.
func (k *Kernel) Raise(line IRQ) {
	if line >= maxIRQ {
		return
	}
	k.cpu.raise(line)
}

// RaiseTick delivers one tick. It is safe from any goroutine.
func (k *Kernel) RaiseTick() {
	k.tickBacklog.Add(1)
	k.cpu.raise(IRQTick)
}

// TickTo delivers ticks until a monotonically increasing external tick
// sequence number is reached. Older sequence numbers are ignored.
func (k *Kernel) TickTo(seq uint64) {
	for {
		last := k.tickSeq.Load()
		if seq <= last {
			return
		}
		if k.tickSeq.CompareAndSwap(last, seq) {
			k.tickBacklog.Add(uint32(seq - last))
			k.cpu.raise(IRQTick)
			return
		}
	}
}

func (k *Kernel) tickISR() {
	n := k.tickBacklog.Swap(0)
	k.inTickISR = true
	for ; n > 0; n-- {
		k.onTick()
	}
	k.inTickISR = false
}

func (k *Kernel) onTick() {
	k.now++
	k.nowSeen.Store(uint32(k.now))
	if cur := k.current; cur != nil && cur != k.idle && k.cfg.Quantum > 0 && cur.quantum > 0 {
		cur.quantum--
	}
	k.pollTimers()
}

func (k *Kernel) softISR() {
	for _, p := range k.procs[:k.nprocs] {
		if bits := Signals(p.posted.Swap(0)); bits != 0 {
			k.send(p, bits)
		}
	}
}
