//go:build !tinygo

package hal

import "time"

// hostTime converts wall-clock time observed by the host runner into a
// tick sequence. The runner calls step once per frame.
type hostTime struct {
	ch     chan uint64
	seq    uint64
	period time.Duration

	last time.Time
	acc  time.Duration
}

func newHostTime(periodMicros uint32) *hostTime {
	if periodMicros == 0 {
		periodMicros = 1000
	}
	return &hostTime{
		ch:     make(chan uint64, 1024),
		period: time.Duration(periodMicros) * time.Microsecond,
	}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

func (t *hostTime) PeriodMicros() uint32 { return uint32(t.period / time.Microsecond) }

func (t *hostTime) step() {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.period)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % t.period
	t.stepN(ticks)
}

// stepN advances the sequence by n and publishes only the latest value;
// consumers treat the sequence number as an absolute tick count.
func (t *hostTime) stepN(n uint64) {
	t.seq += n
	for {
		select {
		case t.ch <- t.seq:
			return
		default:
		}
		select {
		case <-t.ch:
		default:
		}
	}
}
