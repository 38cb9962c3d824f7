package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"ember/emberos/clock"
	"ember/emberos/kernel"
	"ember/emberos/tasks/msgbench"
)

// ringDelays are the per-worker delay units; the first six form the
// reference workload.
var ringDelays = []uint32{1, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}

const (
	prioSampler = 7
	prioStopper = 6
	prioSpinner = 2
	sigSample   = kernel.Signals(1 << 0)
	sampleLine  = kernel.IRQUser
)

type options struct {
	kernel  kernel.Config
	delays  []uint32
	rounds  int
	unit    uint32
	samples int
	tick    time.Duration
}

type result struct {
	checksum uint32
	want     uint32
	ticks    uint32
	switches uint64
	latency  []float64
}

var errIncomplete = errors.New("kernel halted before the workloads finished")

// runOne boots a kernel with the message ring, a busy background process
// and a sampler woken from a board interrupt, and runs it to completion.
func runOne(ctx context.Context, opts options) (result, error) {
	k, err := kernel.New(opts.kernel)
	if err != nil {
		return result{}, err
	}

	bcfg := msgbench.DefaultConfig()
	bcfg.Delays = opts.delays
	bcfg.Rounds = opts.rounds
	bcfg.Unit = opts.unit
	bench, err := msgbench.Spawn(k, bcfg)
	if err != nil {
		return result{}, err
	}

	p := &sampler{k: k, samples: opts.samples, ack: make(chan struct{}, 1)}
	if p.self, err = k.Spawn(kernel.ProcConfig{Name: "sampler", Priority: prioSampler, Entry: p.run}); err != nil {
		return result{}, err
	}
	if err := k.HandleIRQ(sampleLine, func() { k.Send(p.self, sigSample) }); err != nil {
		return result{}, err
	}

	spinning := true
	if _, err := k.Spawn(kernel.ProcConfig{Name: "spin", Priority: prioSpinner, Entry: func(ctx *kernel.Context) error {
		for spinning {
			for i := 0; i < 64; i++ {
				ctx.Checkpoint()
			}
			ctx.Yield()
		}
		return nil
	}}); err != nil {
		return result{}, err
	}

	var res result
	var complete bool
	if _, err := k.Spawn(kernel.ProcConfig{Name: "stopper", Priority: prioStopper, Entry: func(ctx *kernel.Context) error {
		for !bench.Finished() || !p.finished {
			ctx.Sleep(10)
		}
		spinning = false
		for _, info := range ctx.Kernel().Snapshot(nil) {
			res.switches += uint64(info.Switches)
		}
		res.ticks = uint32(ctx.Now())
		complete = true
		ctx.Shutdown()
		return nil
	}}); err != nil {
		return result{}, err
	}

	stop := make(chan struct{})
	defer close(stop)
	go tick(k, opts.tick, stop)
	go p.drive(opts.tick, stop)

	if err := k.Run(ctx); err != nil {
		return result{}, err
	}
	if !complete {
		return result{}, errIncomplete
	}
	res.checksum = bench.Checksum()
	res.want = msgbench.Expected(bcfg)
	res.latency = p.latency
	return res, nil
}

func tick(k *kernel.Kernel, every time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-k.Done():
			return
		case <-t.C:
			k.RaiseTick()
		}
	}
}

// sampler measures how many ticks pass between a board interrupt and the
// woken process running.
type sampler struct {
	k       *kernel.Kernel
	self    *kernel.Proc
	samples int

	raisedAt atomic.Uint32
	ack      chan struct{}

	latency  []float64
	finished bool
}

// drive raises the sample line from outside the kernel, one sample at a
// time.
func (p *sampler) drive(gap time.Duration, stop <-chan struct{}) {
	for i := 0; i < p.samples; i++ {
		select {
		case <-stop:
			return
		case <-p.k.Done():
			return
		case <-time.After(gap * time.Duration(3+i%5)):
		}
		p.raisedAt.Store(uint32(p.k.Now()))
		p.k.Raise(sampleLine)
		select {
		case <-stop:
			return
		case <-p.k.Done():
			return
		case <-p.ack:
		}
	}
}

func (p *sampler) run(ctx *kernel.Context) error {
	for len(p.latency) < p.samples {
		ctx.Wait(sigSample)
		at := clock.Tick(p.raisedAt.Load())
		p.latency = append(p.latency, float64(ctx.Now().Since(at)))
		select {
		case p.ack <- struct{}{}:
		default:
		}
	}
	p.finished = true
	return nil
}
