package kernel

const mailboxSlots = 8

// SendResult describes the outcome of a mailbox send.
type SendResult uint8

const (
	SendOK SendResult = iota
	SendErrNoReceiver
	SendErrQueueFull
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendErrNoReceiver:
		return "no receiver"
	case SendErrQueueFull:
		return "queue full"
	default:
		return "unknown"
	}
}

// Mailbox is a fixed ring of word-sized messages owned by one receiving
// process. Every push signals the owner with the mailbox's bit.
type Mailbox struct {
	k     *Kernel
	owner *Proc
	bit   Signals

	head  uint8
	tail  uint8
	slots [mailboxSlots]uint32
}

// NewMailbox creates a mailbox that wakes owner with bit.
func NewMailbox(owner *Proc, bit Signals) *Mailbox {
	return &Mailbox{k: owner.k, owner: owner, bit: bit}
}

// Owner returns the receiving process.
func (mb *Mailbox) Owner() *Proc { return mb.owner }

// Len returns the number of queued messages.
func (mb *Mailbox) Len() int {
	s := mb.k.cpu.disable()
	n := int(mb.head - mb.tail)
	mb.k.cpu.restore(s)
	return n
}

// Send queues v without blocking. Interrupt-safe.
func (mb *Mailbox) Send(v uint32) SendResult {
	s := mb.k.cpu.disable()
	defer mb.k.cpu.restore(s)

	if mb.owner.status == StatusZombie {
		return SendErrNoReceiver
	}
	if mb.head-mb.tail >= mailboxSlots {
		return SendErrQueueFull
	}
	mb.slots[mb.head%mailboxSlots] = v
	mb.head++
	mb.k.send(mb.owner, mb.bit)
	return SendOK
}

// SendRetry sends v, sleeping one tick between attempts while the ring is
// full. limit bounds the attempts; 0 retries forever.
func (mb *Mailbox) SendRetry(ctx *Context, v uint32, limit int) SendResult {
	for attempt := 1; ; attempt++ {
		res := mb.Send(v)
		if res != SendErrQueueFull || (limit > 0 && attempt >= limit) {
			return res
		}
		ctx.Sleep(1)
	}
}

// TryRecv pops the oldest message.
func (mb *Mailbox) TryRecv() (uint32, bool) {
	s := mb.k.cpu.disable()
	defer mb.k.cpu.restore(s)
	if mb.tail == mb.head {
		return 0, false
	}
	v := mb.slots[mb.tail%mailboxSlots]
	mb.tail++
	return v, true
}

// Recv blocks the owner until a message is available.
func (mb *Mailbox) Recv(ctx *Context) uint32 {
	for {
		if v, ok := mb.TryRecv(); ok {
			return v
		}
		ctx.Wait(mb.bit)
	}
}
