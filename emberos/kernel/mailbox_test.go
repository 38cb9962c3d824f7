package kernel

import "testing"

func TestMailboxRingOrderAndCapacity(t *testing.T) {
	k := newTestKernel(t, nil)
	var results []SendResult
	var got []uint32
	var gone *Proc
	var orphan SendResult
	gone = mustSpawn(t, k, "gone", 3, func(ctx *Context) error { return nil })
	mustSpawn(t, k, "p", 2, func(ctx *Context) error {
		mb := NewMailbox(ctx.Self(), 1)
		for i := uint32(0); i < mailboxSlots+1; i++ {
			results = append(results, mb.Send(i))
		}
		for mb.Len() > 0 {
			got = append(got, mb.Recv(ctx))
		}
		orphan = NewMailbox(gone, 1).Send(7)
		ctx.Shutdown()
		return nil
	})
	mustRun(t, k)

	for i, r := range results {
		want := SendOK
		if i == mailboxSlots {
			want = SendErrQueueFull
		}
		if r != want {
			t.Fatalf("send %d: %s, want %s", i, r, want)
		}
	}
	for i, v := range got {
		if v != uint32(i) {
			t.Fatalf("recv order=%v", got)
		}
	}
	if len(got) != mailboxSlots {
		t.Fatalf("received %d, want %d", len(got), mailboxSlots)
	}
	if orphan != SendErrNoReceiver {
		t.Fatalf("send to zombie: %s", orphan)
	}
}

func TestMailboxRecvBlocksUntilSend(t *testing.T) {
	k := newTestKernel(t, nil)
	var mb *Mailbox
	var got []uint32
	rx := mustSpawn(t, k, "rx", 3, func(ctx *Context) error {
		for len(got) < 3 {
			got = append(got, mb.Recv(ctx))
		}
		ctx.Shutdown()
		return nil
	})
	mb = NewMailbox(rx, 1<<4)
	mustSpawn(t, k, "tx", 2, func(ctx *Context) error {
		for v := uint32(10); ; v++ {
			mb.Send(v)
			ctx.Sleep(1)
		}
	})
	mustRun(t, k)

	if len(got) != 3 || got[0] != 10 || got[1] != 11 || got[2] != 12 {
		t.Fatalf("got=%v", got)
	}
}

func TestMailboxSendRetryWaitsForRoom(t *testing.T) {
	k := newTestKernel(t, nil)
	var mb *Mailbox
	var got []uint32
	var last SendResult
	rx := mustSpawn(t, k, "rx", 1, func(ctx *Context) error {
		for len(got) < mailboxSlots+1 {
			got = append(got, mb.Recv(ctx))
		}
		ctx.Shutdown()
		return nil
	})
	mb = NewMailbox(rx, 1)
	mustSpawn(t, k, "tx", 2, func(ctx *Context) error {
		for v := uint32(0); v < mailboxSlots; v++ {
			mb.Send(v)
		}
		if r := mb.SendRetry(ctx, 99, 1); r != SendErrQueueFull {
			last = r
			return nil
		}
		last = mb.SendRetry(ctx, 99, 0)
		return nil
	})
	mustRun(t, k)

	if last != SendOK {
		t.Fatalf("retry result=%s", last)
	}
	if len(got) != mailboxSlots+1 || got[mailboxSlots] != 99 {
		t.Fatalf("got=%v", got)
	}
}
