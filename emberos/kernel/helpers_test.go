package kernel

import (
	"context"
	"testing"
	"time"
)

func newTestKernel(t *testing.T, mutate func(*Config)) *Kernel {
	t.Helper()
	cfg := DefaultConfig()
	cfg.VirtualTime = true
	cfg.OnFatal = func(info FatalInfo) { t.Errorf("unexpected %v", info) }
	if mutate != nil {
		mutate(&cfg)
	}
	k, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func cooperative(cfg *Config) { cfg.Preemptive = false }

func mustSpawn(t *testing.T, k *Kernel, name string, prio int, entry Entry) *Proc {
	t.Helper()
	p, err := k.Spawn(ProcConfig{Name: name, Priority: prio, Entry: entry})
	if err != nil {
		t.Fatalf("Spawn(%s): %v", name, err)
	}
	return p
}

// stopWhen spawns a lowest-priority process that halts the kernel once
// done reports true. done runs in process context.
func stopWhen(t *testing.T, k *Kernel, done func() bool) {
	t.Helper()
	mustSpawn(t, k, "stopper", 1, func(ctx *Context) error {
		for !done() {
			ctx.Sleep(1)
		}
		ctx.Shutdown()
		return nil
	})
}

func runKernel(t *testing.T, k *Kernel) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return k.Run(ctx)
}

func mustRun(t *testing.T, k *Kernel) {
	t.Helper()
	if err := runKernel(t, k); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// startTicker feeds real ticks until the test ends.
func startTicker(t *testing.T, k *Kernel, every time.Duration) {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-k.Done():
				return
			case <-tk.C:
				k.RaiseTick()
			}
		}
	}()
}
