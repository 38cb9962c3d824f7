package kernel

import (
	"errors"
	"fmt"
	"sync/atomic"

	"ember/emberos/arch"
)

// PID identifies a process. The idle process is always 0.
type PID uint8

// Status is the scheduling state of a process.
type Status uint8

const (
	StatusReady Status = iota
	StatusRunning
	StatusSleeping
	StatusZombie
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSleeping:
		return "sleeping"
	case StatusZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Entry is a process body. Returning ErrRestart runs it again; any other
// return terminates the process.
type Entry func(ctx *Context) error

// ProcConfig describes a process for Spawn.
type ProcConfig struct {
	Name     string
	Priority int
	// Stack is the caller-owned region. nil allocates DefaultStackWords.
	Stack []arch.Word
	Entry Entry
	// Arg reaches the entry through the initial frame; see Context.Arg.
	Arg arch.Word
}

// Proc is a process control block.
type Proc struct {
	k *Kernel

	pid    PID
	name   string
	prio   int
	status Status

	pending  Signals
	waitMask Signals
	posted   atomic.Uint32

	// ready band links
	next, prev *Proc
	queued     bool

	quantum uint32
	ctx     *arch.Context
	entry   Entry
	timeout Timer

	switches uint32
	wakeups  uint32
	restarts uint32
	exitErr  error
}

func (p *Proc) PID() PID             { return p.pid }
func (p *Proc) Name() string         { return p.name }
func (p *Proc) Priority() int        { return p.prio }
func (p *Proc) Status() Status       { return p.status }
func (p *Proc) Pending() Signals     { return p.pending }
func (p *Proc) ExitErr() error       { return p.exitErr }
func (p *Proc) String() string       { return fmt.Sprintf("%s(%d)", p.name, p.pid) }
func (p *Proc) Stack() *arch.Context { return p.ctx }

// Spawn creates a READY process. It may be called before Run or from
// process context. A stack region that is too small is fatal.
func (k *Kernel) Spawn(cfg ProcConfig) (*Proc, error) {
	if cfg.Priority < 1 || cfg.Priority > MaxPriority {
		return nil, fmt.Errorf("%w: %d", ErrBadPriority, cfg.Priority)
	}
	if cfg.Stack == nil {
		cfg.Stack = make([]arch.Word, DefaultStackWords)
	}
	return k.spawn(cfg, cfg.Priority)
}

func (k *Kernel) spawn(cfg ProcConfig, prio int) (*Proc, error) {
	if cfg.Entry == nil {
		return nil, ErrNoEntry
	}
	s := k.cpu.disable()
	defer k.cpu.restore(s)

	if k.nprocs >= MaxProcs {
		return nil, ErrTooManyProcs
	}
	for _, q := range k.procs[:k.nprocs] {
		if q.status != StatusZombie && q.ctx.Owns(cfg.Stack) {
			k.fatalf(q, "process %s initialised twice", q.name)
			return nil, ErrStackInUse
		}
	}

	p := &Proc{
		k:       k,
		pid:     PID(k.nprocs),
		name:    cfg.Name,
		prio:    prio,
		status:  StatusReady,
		quantum: k.cfg.Quantum,
		entry:   cfg.Entry,
	}
	ctx, err := arch.BuildFrame(cfg.Stack, k.cfg.Layout, arch.FrameOptions{
		Entry:       k.trampoline(p),
		Arg:         cfg.Arg,
		Preemptible: k.cfg.Preemptive,
		Halt:        k.halt,
	})
	if err != nil {
		if errors.Is(err, arch.ErrStackTooSmall) {
			k.fatalf(nil, "spawn %s: %v", cfg.Name, err)
		}
		return nil, err
	}
	p.ctx = ctx
	k.procs[k.nprocs] = p
	k.nprocs++

	k.ready.pushBack(p)
	k.notePreempt(p)
	k.logf("spawn pid=%d name=%s prio=%d stack=%d", p.pid, p.name, p.prio, ctx.Words())
	return p, nil
}

// trampoline is the first code a fresh context runs. arg is read back out
// of the initial frame by the switch primitive.
func (k *Kernel) trampoline(p *Proc) func(arch.Word) {
	return func(arg arch.Word) {
		defer func() {
			if r := recover(); r != nil {
				k.fatalf(p, "process %s panicked: %v", p.name, r)
			}
		}()
		ctx := &Context{k: k, p: p, arg: arg}
		k.cpu.restore(irqEnabled)
		for {
			err := p.entry(ctx)
			if errors.Is(err, ErrRestart) {
				p.restarts++
				k.logf("restart pid=%d name=%s", p.pid, p.name)
				continue
			}
			k.exit(p, err)
			return
		}
	}
}

// exit retires the running process and hands the CPU on without saving
// anything. The caller's goroutine must return right after.
func (k *Kernel) exit(p *Proc, err error) {
	k.cpu.disable()
	k.abortTimer(&p.timeout)
	if p.queued {
		k.ready.remove(p)
	}
	p.status = StatusZombie
	p.exitErr = err
	k.logf("exit pid=%d name=%s err=%v", p.pid, p.name, err)

	next := k.ready.pop()
	if next == nil {
		k.fatalf(p, "ready queue empty")
		return
	}
	next.status = StatusRunning
	next.switches++
	k.current = next
	if err := arch.Exit(p.ctx, next.ctx, k.cpu); err != nil {
		k.fatalf(p, "exit switch: %v", err)
	}
}

// SetPriority moves p to another priority band. Interrupt-safe.
func (k *Kernel) SetPriority(p *Proc, prio int) error {
	if p == k.idle {
		return fmt.Errorf("%w: idle priority is fixed", ErrBadPriority)
	}
	if prio < 1 || prio > MaxPriority {
		return fmt.Errorf("%w: %d", ErrBadPriority, prio)
	}
	s := k.cpu.disable()
	defer k.cpu.restore(s)

	if p.queued {
		k.ready.remove(p)
		p.prio = prio
		k.ready.pushBack(p)
		k.notePreempt(p)
		return nil
	}
	p.prio = prio
	if p == k.current && k.ready.top() > prio {
		k.requestPreempt(k.now)
	}
	return nil
}

// ProcInfo is a point-in-time view of a process.
type ProcInfo struct {
	PID       PID
	Name      string
	Priority  int
	Status    Status
	Pending   Signals
	WaitMask  Signals
	Switches  uint32
	Wakeups   uint32
	Restarts  uint32
	StackSize int
	HighWater int
	ExitErr   error
}

// Snapshot appends one record per process to dst.
func (k *Kernel) Snapshot(dst []ProcInfo) []ProcInfo {
	s := k.cpu.disable()
	defer k.cpu.restore(s)
	for _, p := range k.procs[:k.nprocs] {
		dst = append(dst, ProcInfo{
			PID:       p.pid,
			Name:      p.name,
			Priority:  p.prio,
			Status:    p.status,
			Pending:   p.pending,
			WaitMask:  p.waitMask,
			Switches:  p.switches,
			Wakeups:   p.wakeups,
			Restarts:  p.restarts,
			StackSize: p.ctx.Words(),
			HighWater: p.ctx.HighWater(),
			ExitErr:   p.exitErr,
		})
	}
	return dst
}

// CheckInvariants verifies the scheduler bookkeeping: exactly one process
// runs, and the ready queue holds exactly the READY processes.
func (k *Kernel) CheckInvariants() error {
	s := k.cpu.disable()
	defer k.cpu.restore(s)

	running := 0
	ready := 0
	for _, p := range k.procs[:k.nprocs] {
		switch p.status {
		case StatusRunning:
			running++
			if p != k.current {
				return fmt.Errorf("kernel: %s running but not current", p)
			}
		case StatusReady:
			ready++
		}
		if p.queued != (p.status == StatusReady) {
			return fmt.Errorf("kernel: %s is %s but queued=%t", p, p.status, p.queued)
		}
	}
	if k.started.Load() && running != 1 {
		return fmt.Errorf("kernel: %d running processes", running)
	}
	if n := k.ready.len(); n != ready {
		return fmt.Errorf("kernel: ready queue holds %d, %d processes ready", n, ready)
	}
	if !k.timers.Sorted() {
		return errors.New("kernel: timer list out of order")
	}
	return nil
}
