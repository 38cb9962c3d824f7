package kernel

// Signals is a set of event bits addressed to one process.
type Signals uint32

// SigTimeout is delivered by WaitTimeout when its delay elapses. It is
// reserved and must not be sent by applications.
const SigTimeout Signals = 1 << 31

// Send merges bits into p's pending set and wakes p if it waits on any of
// them. Interrupt-safe.
func (k *Kernel) Send(p *Proc, bits Signals) {
	s := k.cpu.disable()
	k.send(p, bits)
	k.cpu.restore(s)
}

func (k *Kernel) send(p *Proc, bits Signals) {
	if p == nil || p.status == StatusZombie || bits == 0 {
		return
	}
	p.pending |= bits
	if p.status == StatusSleeping && p.pending&p.waitMask != 0 {
		k.wake(p)
	}
}

// Post delivers bits to p from a goroutine outside the kernel. The bits
// arrive through the soft interrupt line.
func (k *Kernel) Post(p *Proc, bits Signals) {
	if p == nil || bits == 0 {
		return
	}
	for {
		old := p.posted.Load()
		if old&uint32(bits) == uint32(bits) || p.posted.CompareAndSwap(old, old|uint32(bits)) {
			break
		}
	}
	k.cpu.raise(IRQSoft)
}

// wait blocks the current process until one of mask is pending, then
// consumes and returns the matching bits.
func (k *Kernel) wait(mask Signals) Signals {
	k.mustBeProcess("wait")
	cur := k.current
	if mask == 0 {
		k.fatalf(cur, "wait with empty signal mask")
	}
	s := k.cpu.disable()
	for cur.pending&mask == 0 {
		cur.waitMask = mask
		cur.status = StatusSleeping
		cur.quantum = k.cfg.Quantum
		k.block()
	}
	got := cur.pending & mask
	cur.pending &^= got
	k.cpu.restore(s)
	return got
}

// waitTimeout is wait bounded by ticks. It returns SigTimeout alone when
// nothing in mask arrived in time. A zero delay polls.
func (k *Kernel) waitTimeout(mask Signals, ticks uint32) Signals {
	k.mustBeProcess("wait")
	cur := k.current
	s := k.cpu.disable()
	defer k.cpu.restore(s)

	mask &^= SigTimeout
	if ticks == 0 {
		got := cur.pending & mask
		cur.pending &^= got
		if got == 0 {
			return SigTimeout
		}
		return got
	}

	t := &cur.timeout
	cur.pending &^= SigTimeout
	t.Delay = ticks
	t.Action = Notify{Proc: cur, Bits: SigTimeout}
	k.addTimer(t)

	got := k.wait(mask | SigTimeout)
	k.abortTimer(t)
	if got&mask != 0 {
		got &^= SigTimeout
	}
	cur.pending &^= SigTimeout
	return got
}
