// Package msgbench is a message ring regression workload. Each worker
// sleeps its own delay, posts a tagged word to the next worker's mailbox and
// receives one word from its predecessor, for a fixed number of rounds. The
// per-worker hashes are order sensitive, so a dropped, duplicated or
// reordered message changes the final checksum.
package msgbench

import (
	"errors"
	"fmt"

	"ember/emberos/arch"
	"ember/emberos/kernel"
)

// ExpectedChecksum is the result of a run with DefaultConfig.
const ExpectedChecksum uint32 = 0x2f12e082

const sigMail kernel.Signals = 1 << 0

var ErrNoWorkers = errors.New("msgbench: no workers")

type Config struct {
	// Delays holds one per-round sleep per worker, in units.
	Delays []uint32
	// Unit scales Delays to ticks.
	Unit       uint32
	Rounds     int
	Priority   int
	StackWords int

	// OnDone runs in the last worker's context once every worker finished.
	OnDone func(ctx *kernel.Context, sum uint32)
}

func DefaultConfig() Config {
	return Config{
		Delays:   []uint32{1, 3, 5, 7, 11, 13},
		Unit:     1,
		Rounds:   23,
		Priority: 4,
	}
}

// Bench is one spawned instance of the workload.
type Bench struct {
	cfg Config
	k   *kernel.Kernel

	workers []*kernel.Proc
	boxes   []*kernel.Mailbox
	sums    []uint32
	recvd   []int

	finished int
	done     chan struct{}
}

// Spawn creates the workers on k. They start running once the kernel does,
// or at the caller's next scheduling point if it already runs.
func Spawn(k *kernel.Kernel, cfg Config) (*Bench, error) {
	n := len(cfg.Delays)
	if n == 0 || cfg.Rounds <= 0 {
		return nil, ErrNoWorkers
	}
	if cfg.Unit == 0 {
		cfg.Unit = 1
	}
	b := &Bench{
		cfg:     cfg,
		k:       k,
		workers: make([]*kernel.Proc, n),
		boxes:   make([]*kernel.Mailbox, n),
		sums:    make([]uint32, n),
		recvd:   make([]int, n),
		done:    make(chan struct{}),
	}

	// Workers must not run before every mailbox exists.
	s := k.DisableInterrupts()
	defer k.RestoreInterrupts(s)
	for i := range b.workers {
		var stack []arch.Word
		if cfg.StackWords > 0 {
			stack = make([]arch.Word, cfg.StackWords)
		}
		p, err := k.Spawn(kernel.ProcConfig{
			Name:     fmt.Sprintf("msg%d", i),
			Priority: cfg.Priority,
			Stack:    stack,
			Entry:    b.worker,
			Arg:      arch.Word(i),
		})
		if err != nil {
			return nil, fmt.Errorf("msgbench: worker %d: %w", i, err)
		}
		b.workers[i] = p
		b.boxes[i] = kernel.NewMailbox(p, sigMail)
	}
	return b, nil
}

func (b *Bench) worker(ctx *kernel.Context) error {
	i := int(ctx.Arg())
	n := len(b.workers)
	next := b.boxes[(i+1)%n]
	delay := b.cfg.Delays[i] * b.cfg.Unit

	for r := 0; r < b.cfg.Rounds; r++ {
		ctx.Sleep(delay)
		v := uint32(i+1)<<16 | uint32(r)
		if res := next.SendRetry(ctx, v, 0); res != kernel.SendOK {
			return fmt.Errorf("round %d: send to %v: %v", r, next.Owner(), res)
		}
		got := b.boxes[i].Recv(ctx)
		b.sums[i] = b.sums[i]*31 + got
		b.recvd[i]++
	}

	b.finished++
	if b.finished == n {
		close(b.done)
		if b.cfg.OnDone != nil {
			b.cfg.OnDone(ctx, b.Checksum())
		}
	}
	return nil
}

// Workers returns the worker processes in ring order.
func (b *Bench) Workers() []*kernel.Proc { return b.workers }

// Done is closed when the last worker finishes.
func (b *Bench) Done() <-chan struct{} { return b.done }

// Finished reports whether every worker completed its rounds.
func (b *Bench) Finished() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Received returns how many messages worker i consumed.
func (b *Bench) Received(i int) int { return b.recvd[i] }

// Checksum sums the per-worker hashes modulo 2^32.
func (b *Bench) Checksum() uint32 {
	var sum uint32
	for _, h := range b.sums {
		sum += h
	}
	return sum
}

// Expected computes the checksum a lossless, in-order run of cfg produces.
func Expected(cfg Config) uint32 {
	n := len(cfg.Delays)
	var sum uint32
	for i := 0; i < n; i++ {
		prev := (i + n - 1) % n
		var h uint32
		for r := 0; r < cfg.Rounds; r++ {
			h = h*31 + (uint32(prev+1)<<16 | uint32(r))
		}
		sum += h
	}
	return sum
}
