package app

import (
	"context"
	"errors"
	"fmt"

	"ember/emberos/kernel"
	"ember/emberos/services/logger"
	"ember/emberos/services/monitor"
	"ember/emberos/tasks/heartbeat"
	"ember/emberos/tasks/msgbench"
	"ember/hal"
	"ember/internal/buildinfo"
)

// Process priorities. Higher runs first.
const (
	prioLogger    = 6
	prioHeartbeat = 5
	prioMonitor   = 2
)

var ErrChecksum = errors.New("msgbench checksum mismatch")

type Config struct {
	Kernel kernel.Config

	// Bare runs the polled timer loop instead of the scheduler.
	Bare bool

	// Bench spawns the message ring workload at boot.
	Bench bool
	// ExitAfterBench halts the system once the workload finished.
	ExitAfterBench bool

	HeartbeatPeriod uint32
	MonitorPeriod   uint32
}

func DefaultConfig() Config {
	return Config{
		Kernel:          kernel.DefaultConfig(),
		Bench:           true,
		HeartbeatPeriod: heartbeat.DefaultPeriod,
		MonitorPeriod:   250,
	}
}

type system struct {
	h   hal.HAL
	cfg Config

	k     *kernel.Kernel
	log   *logger.Service
	mon   *monitor.Service
	hb    *heartbeat.Task
	bench *msgbench.Bench

	benchErr error
	errc     chan error
	err      error
	done     bool
}

// New boots the OS and returns the step function host runners call once
// per frame. The step reports hal.ErrStop after a clean shutdown and the
// halt cause after a fatal error.
func New(h hal.HAL, cfg Config) func() error {
	if cfg.Bare {
		return newBare(h, cfg).step
	}
	sys, err := newSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	sys.start(context.Background())
	return sys.step
}

// Run boots the OS and blocks forever (TinyGo/native entrypoint).
func Run(h hal.HAL) {
	bootDiagStart(h)
	cfg := DefaultConfig()
	sys, err := newSystem(h, cfg)
	if err != nil {
		logLine(h, "ember: "+err.Error())
		select {}
	}
	sys.feedTicks()
	err = sys.k.Run(context.Background())
	logLine(h, fmt.Sprintf("ember: halted: %v", err))
	select {}
}

func newSystem(h hal.HAL, cfg Config) (*system, error) {
	bootScreen(h, "kernel")
	sys := &system{h: h, cfg: cfg, errc: make(chan error, 1)}

	kcfg := cfg.Kernel
	next := kcfg.OnFatal
	kcfg.OnFatal = func(info kernel.FatalInfo) {
		fatalScreen(h, info)
		if next != nil {
			next(info)
		}
	}
	k, err := kernel.New(kcfg)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	sys.k = k

	bootScreen(h, "services")
	sys.log = logger.New(k, h.Logger())
	k.SetLogger(sys.log)
	if _, err := sys.log.Spawn(prioLogger); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	sys.log.WriteLineString(buildinfo.String() + " on " + h.Name())

	if sys.mon = monitor.New(k, h.Display(), "ember "+buildinfo.Short()); sys.mon != nil {
		if cfg.MonitorPeriod > 0 {
			sys.mon.Period = cfg.MonitorPeriod
		}
		sys.log.SetTee(sys.mon)
		if _, err := sys.mon.Spawn(prioMonitor); err != nil {
			return nil, fmt.Errorf("monitor: %w", err)
		}
	}

	bootScreen(h, "tasks")
	sys.hb = heartbeat.New(k, h.LED(), cfg.HeartbeatPeriod)
	if _, err := sys.hb.Spawn(prioHeartbeat); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}

	if cfg.Bench {
		bcfg := msgbench.DefaultConfig()
		bcfg.OnDone = sys.benchDone
		if sys.bench, err = msgbench.Spawn(k, bcfg); err != nil {
			return nil, err
		}
	}
	return sys, nil
}

func (s *system) benchDone(ctx *kernel.Context, sum uint32) {
	if sum == msgbench.ExpectedChecksum {
		s.log.WriteLineString(fmt.Sprintf("msgbench: checksum %#08x ok at tick %d", sum, uint32(ctx.Now())))
	} else {
		s.benchErr = fmt.Errorf("%w: got %#08x, want %#08x", ErrChecksum, sum, msgbench.ExpectedChecksum)
		s.log.WriteLineString("msgbench: " + s.benchErr.Error())
	}
	if !s.cfg.ExitAfterBench {
		return
	}
	// Let the logger drain before halting.
	ctx.Sleep(1)
	ctx.Shutdown()
}

func (s *system) feedTicks() {
	ht := s.h.Time()
	if ht == nil {
		return
	}
	ch := ht.Ticks()
	if ch == nil {
		return
	}
	go func() {
		for {
			select {
			case <-s.k.Done():
				return
			case seq := <-ch:
				s.k.TickTo(seq)
			}
		}
	}()
}

func (s *system) start(ctx context.Context) {
	s.feedTicks()
	go func() { s.errc <- s.k.Run(ctx) }()
}

func (s *system) step() error {
	if s.done {
		return s.err
	}
	select {
	case err := <-s.errc:
		s.done = true
		switch {
		case err != nil:
			s.err = err
		case s.benchErr != nil:
			s.err = s.benchErr
		default:
			s.err = hal.ErrStop
		}
		return s.err
	default:
		return nil
	}
}

func logLine(h hal.HAL, s string) {
	if l := h.Logger(); l != nil {
		l.WriteLineString(s)
	}
}
