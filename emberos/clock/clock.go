// Package clock defines the system time base.
//
// A Tick is a fixed-width counter that wraps. Never compare two ticks with
// < or >; use the methods here, which subtract modulo 2^32 and stay correct
// across overflow as long as the compared values are less than 2^31 ticks
// apart.
package clock

// Tick counts periods of the system tick interrupt.
type Tick uint32

// Add returns t advanced by d ticks.
func (t Tick) Add(d uint32) Tick { return t + Tick(d) }

// Sub returns the signed distance t-u.
func (t Tick) Sub(u Tick) int32 { return int32(t - u) }

// Before reports whether t happens strictly before u.
func (t Tick) Before(u Tick) bool { return t.Sub(u) < 0 }

// After reports whether t happens strictly after u.
func (t Tick) After(u Tick) bool { return t.Sub(u) > 0 }

// Reached reports whether deadline is due at time t.
func (t Tick) Reached(deadline Tick) bool { return t.Sub(deadline) >= 0 }

// Since returns the number of ticks elapsed from u to t.
//
// The result is only meaningful when u is not after t.
func (t Tick) Since(u Tick) uint32 { return uint32(t - u) }
