//go:build tinygo

package hal

import "time"

type tinyGoTime struct {
	ch     chan uint64
	seq    uint64
	period uint32
}

func newTinyGoTime(periodMicros uint32) *tinyGoTime {
	t := &tinyGoTime{ch: make(chan uint64, 16), period: periodMicros}
	go func() {
		ticker := time.NewTicker(time.Duration(periodMicros) * time.Microsecond)
		defer ticker.Stop()
		for range ticker.C {
			t.seq++
			select {
			case t.ch <- t.seq:
			default:
			}
		}
	}()
	return t
}

func (t *tinyGoTime) Ticks() <-chan uint64 { return t.ch }

func (t *tinyGoTime) PeriodMicros() uint32 { return t.period }
