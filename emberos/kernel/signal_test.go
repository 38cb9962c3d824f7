package kernel

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ember/emberos/clock"
)

func TestSignalsAccumulateUntilWaited(t *testing.T) {
	k := newTestKernel(t, nil)
	var first, second, left Signals
	rx := mustSpawn(t, k, "rx", 2, func(ctx *Context) error {
		first = ctx.Wait(1 | 2)
		left = ctx.Self().Pending()
		second = ctx.Wait(4)
		ctx.Shutdown()
		return nil
	})
	mustSpawn(t, k, "tx", 3, func(ctx *Context) error {
		ctx.Send(rx, 1)
		ctx.Send(rx, 2)
		ctx.Send(rx, 4)
		return nil
	})
	mustRun(t, k)

	if first != 3 {
		t.Fatalf("first wait=%b, want 11", first)
	}
	if left != 4 {
		t.Fatalf("pending after first wait=%b, want 100", left)
	}
	if second != 4 {
		t.Fatalf("second wait=%b, want 100", second)
	}
}

func TestRepeatedSendsMerge(t *testing.T) {
	k := newTestKernel(t, cooperative)
	var got, again Signals
	var wakeups uint32
	rx := mustSpawn(t, k, "rx", 3, func(ctx *Context) error {
		got = ctx.Wait(8)
		wakeups = ctx.Self().wakeups
		again = ctx.WaitTimeout(8, 5)
		ctx.Shutdown()
		return nil
	})
	mustSpawn(t, k, "tx", 2, func(ctx *Context) error {
		ctx.Send(rx, 8)
		ctx.Send(rx, 8)
		return nil
	})
	mustRun(t, k)

	if got != 8 {
		t.Fatalf("got=%b, want 1000", got)
	}
	if wakeups != 1 {
		t.Fatalf("wakeups=%d, want 1", wakeups)
	}
	if again != SigTimeout {
		t.Fatalf("second wait=%#x, want timeout", again)
	}
}

func TestPostFromForeignGoroutineNeverLost(t *testing.T) {
	const rounds = 500
	for _, preemptive := range []bool{true, false} {
		name := "cooperative"
		if preemptive {
			name = "preemptive"
		}
		t.Run(name, func(t *testing.T) {
			k := newTestKernel(t, func(cfg *Config) {
				cfg.Preemptive = preemptive
				cfg.VirtualTime = false
			})
			ack := make(chan struct{}, 1)
			p := mustSpawn(t, k, "rx", 2, func(ctx *Context) error {
				for i := 0; i < rounds; i++ {
					ctx.Wait(1)
					ack <- struct{}{}
				}
				ctx.Shutdown()
				return nil
			})

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			go func() {
				for i := 0; i < rounds; i++ {
					k.Post(p, 1)
					select {
					case <-ack:
					case <-k.Done():
						return
					}
				}
			}()
			if err := k.Run(ctx); err != nil {
				t.Fatalf("Run: %v (lost wakeup)", err)
			}
		})
	}
}

func TestWaitTimeoutExpires(t *testing.T) {
	const sigX Signals = 1 << 3
	k := newTestKernel(t, nil)

	var got Signals
	var elapsed uint32
	var leftover Signals
	var state TimerState
	mustSpawn(t, k, "worker-2", 2, func(ctx *Context) error {
		start := ctx.Now()
		got = ctx.WaitTimeout(sigX, 100)
		elapsed = ctx.Now().Since(start)
		leftover = ctx.Self().Pending()
		state = ctx.Self().timeout.State()
		ctx.Shutdown()
		return nil
	})
	mustSpawn(t, k, "worker-1", 1, func(ctx *Context) error {
		for {
			ctx.Sleep(7)
		}
	})
	mustRun(t, k)

	if got != SigTimeout {
		t.Fatalf("got=%#x, want SigTimeout", got)
	}
	if elapsed != 100 {
		t.Fatalf("elapsed=%d ticks, want 100", elapsed)
	}
	if leftover != 0 {
		t.Fatalf("pending after timeout=%#x", leftover)
	}
	if state != TimerExpired {
		t.Fatalf("timeout timer state=%s", state)
	}
}

func TestWaitTimeoutSignalWins(t *testing.T) {
	const sigX Signals = 1 << 3
	k := newTestKernel(t, nil)

	var got, poll Signals
	var elapsed uint32
	var state TimerState
	waiter := mustSpawn(t, k, "waiter", 2, func(ctx *Context) error {
		start := ctx.Now()
		got = ctx.WaitTimeout(sigX, 50)
		elapsed = ctx.Now().Since(start)
		state = ctx.Self().timeout.State()
		poll = ctx.WaitTimeout(sigX, 0)
		ctx.Sleep(60)
		ctx.Shutdown()
		return nil
	})
	mustSpawn(t, k, "sender", 1, func(ctx *Context) error {
		ctx.Sleep(10)
		ctx.Send(waiter, sigX)
		return nil
	})
	mustRun(t, k)

	if got != sigX {
		t.Fatalf("got=%#x, want sigX", got)
	}
	if elapsed != 10 {
		t.Fatalf("elapsed=%d, want 10", elapsed)
	}
	if state != TimerIdle {
		t.Fatalf("timeout timer state=%s, want idle", state)
	}
	if poll != SigTimeout {
		t.Fatalf("poll=%#x, want SigTimeout", poll)
	}
	if waiter.Pending()&SigTimeout != 0 {
		t.Fatalf("stale timeout bit pending")
	}
}

func TestSleepIsExact(t *testing.T) {
	for _, preemptive := range []bool{true, false} {
		k := newTestKernel(t, func(cfg *Config) { cfg.Preemptive = preemptive })
		var elapsed uint32
		mustSpawn(t, k, "sleeper", 2, func(ctx *Context) error {
			start := ctx.Now()
			ctx.Sleep(25)
			elapsed = ctx.Now().Since(start)
			ctx.Shutdown()
			return nil
		})
		mustRun(t, k)
		if elapsed != 25 {
			t.Fatalf("preemptive=%t: slept %d ticks, want 25", preemptive, elapsed)
		}
	}
}

// nearWrap starts k's tick counter a few ticks before it overflows.
func nearWrap(k *Kernel) clock.Tick {
	k.now = math.MaxUint32 - 5
	k.nowSeen.Store(uint32(k.now))
	return k.now
}

func TestDeadlinesAcrossTickWrap(t *testing.T) {
	const sigX Signals = 1 << 3
	for _, preemptive := range []bool{true, false} {
		k := newTestKernel(t, func(cfg *Config) { cfg.Preemptive = preemptive })
		origin := nearWrap(k)

		var slept, waited uint32
		var got Signals
		var ends []clock.Tick
		mustSpawn(t, k, "sleeper", 3, func(ctx *Context) error {
			start := ctx.Now()
			ctx.Sleep(25)
			slept = ctx.Now().Since(start)
			ends = append(ends, ctx.Now())
			return nil
		})
		mustSpawn(t, k, "waiter", 2, func(ctx *Context) error {
			ctx.Sleep(3)
			start := ctx.Now()
			got = ctx.WaitTimeout(sigX, 10)
			waited = ctx.Now().Since(start)
			ends = append(ends, ctx.Now())
			ctx.Sleep(30)
			ctx.Shutdown()
			return nil
		})
		mustRun(t, k)

		if slept != 25 {
			t.Fatalf("preemptive=%t: slept %d ticks across the wrap, want 25", preemptive, slept)
		}
		if got != SigTimeout || waited != 10 {
			t.Fatalf("preemptive=%t: WaitTimeout=%#x after %d ticks, want SigTimeout after 10", preemptive, got, waited)
		}
		want := []clock.Tick{origin.Add(13), origin.Add(25)}
		if len(ends) != 2 || ends[0] != want[0] || ends[1] != want[1] {
			t.Fatalf("preemptive=%t: woke at %v, want %v", preemptive, ends, want)
		}
		if want[0] > origin {
			t.Fatalf("counter did not wrap: %d -> %d", origin, want[0])
		}
	}
}

func TestTimerOrderAcrossTickWrap(t *testing.T) {
	k := newTestKernel(t, nil)
	origin := nearWrap(k)
	var fired []clock.Tick
	record := SoftIRQ(func(*Timer) { fired = append(fired, k.now) })
	late := Timer{Delay: 20, Action: record}
	early := Timer{Delay: 4, Action: record}
	mid := Timer{Delay: 9, Action: record}
	mustSpawn(t, k, "p", 2, func(ctx *Context) error {
		k.AddTimer(&late)
		k.AddTimer(&early)
		k.AddTimer(&mid)
		ctx.Sleep(30)
		ctx.Shutdown()
		return nil
	})
	mustRun(t, k)

	want := []clock.Tick{origin.Add(4), origin.Add(9), origin.Add(20)}
	if len(fired) != len(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	}
}

func TestWaitWithEmptyMaskIsFatal(t *testing.T) {
	var info FatalInfo
	k := newTestKernel(t, func(cfg *Config) {
		cfg.OnFatal = func(fi FatalInfo) { info = fi }
	})
	mustSpawn(t, k, "p", 2, func(ctx *Context) error {
		ctx.Wait(0)
		return nil
	})
	if err := runKernel(t, k); !errors.Is(err, ErrFatal) {
		t.Fatalf("Run err=%v", err)
	}
	if info.Reason != "wait with empty signal mask" {
		t.Fatalf("fatal info=%+v", info)
	}
}

func TestWaitFromInterruptIsFatal(t *testing.T) {
	var info FatalInfo
	k := newTestKernel(t, func(cfg *Config) {
		cfg.OnFatal = func(fi FatalInfo) { info = fi }
	})
	var pctx *Context
	if err := k.HandleIRQ(IRQUser, func() { pctx.Wait(1) }); err != nil {
		t.Fatal(err)
	}
	mustSpawn(t, k, "p", 2, func(ctx *Context) error {
		pctx = ctx
		k.Raise(IRQUser)
		ctx.Checkpoint()
		return nil
	})
	if err := runKernel(t, k); !errors.Is(err, ErrFatal) {
		t.Fatalf("Run err=%v", err)
	}
	if info.Reason != "wait from interrupt context" {
		t.Fatalf("fatal info=%+v", info)
	}
}

func TestSendToZombieIsDropped(t *testing.T) {
	k := newTestKernel(t, nil)
	gone := mustSpawn(t, k, "gone", 3, func(ctx *Context) error { return nil })
	mustSpawn(t, k, "tx", 2, func(ctx *Context) error {
		ctx.Send(gone, 1)
		ctx.Shutdown()
		return nil
	})
	mustRun(t, k)
	if gone.Status() != StatusZombie || gone.Pending() != 0 {
		t.Fatalf("zombie status=%s pending=%b", gone.Status(), gone.Pending())
	}
}
