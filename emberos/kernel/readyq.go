package kernel

import "math/bits"

// readyQueue keeps one FIFO band per priority and a bitmap of non-empty
// bands, so the most urgent process is found in constant time.
type readyQueue struct {
	bands  [MaxPriority + 1]band
	bitmap uint32
	n      int
}

type band struct {
	head, tail *Proc
}

func (q *readyQueue) pushBack(p *Proc) {
	b := &q.bands[p.prio]
	p.next = nil
	p.prev = b.tail
	if b.tail != nil {
		b.tail.next = p
	} else {
		b.head = p
	}
	b.tail = p
	q.link(p)
}

func (q *readyQueue) pushFront(p *Proc) {
	b := &q.bands[p.prio]
	p.prev = nil
	p.next = b.head
	if b.head != nil {
		b.head.prev = p
	} else {
		b.tail = p
	}
	b.head = p
	q.link(p)
}

func (q *readyQueue) link(p *Proc) {
	p.queued = true
	q.bitmap |= 1 << p.prio
	q.n++
}

func (q *readyQueue) remove(p *Proc) {
	if !p.queued {
		return
	}
	b := &q.bands[p.prio]
	if p.prev != nil {
		p.prev.next = p.next
	} else {
		b.head = p.next
	}
	if p.next != nil {
		p.next.prev = p.prev
	} else {
		b.tail = p.prev
	}
	p.next, p.prev = nil, nil
	p.queued = false
	if b.head == nil {
		q.bitmap &^= 1 << p.prio
	}
	q.n--
}

// top returns the highest non-empty priority, or -1.
func (q *readyQueue) top() int {
	return bits.Len32(q.bitmap) - 1
}

// pop dequeues the head of the highest non-empty band.
func (q *readyQueue) pop() *Proc {
	prio := q.top()
	if prio < 0 {
		return nil
	}
	p := q.bands[prio].head
	q.remove(p)
	return p
}

func (q *readyQueue) len() int { return q.n }
