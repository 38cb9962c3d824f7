// Package logger moves log lines out of interrupt handlers and hot paths:
// writers copy a line into a ring and signal the logger process, which
// drains the ring to the board log at its own priority.
package logger

import (
	"fmt"
	"io"

	"ember/emberos/kernel"
	"ember/hal"
)

const (
	ringLines = 32
	maxLine   = 120
)

const sigLine kernel.Signals = 1 << 0

type line struct {
	n   uint8
	buf [maxLine]byte
}

// Service is a kernel.Logger backed by a process.
type Service struct {
	k    *kernel.Kernel
	out  hal.Logger
	tee  io.Writer
	self *kernel.Proc

	head, tail uint8
	ring       [ringLines]line
	dropped    uint32
}

func New(k *kernel.Kernel, out hal.Logger) *Service {
	return &Service{k: k, out: out}
}

// SetTee mirrors every drained line to w, e.g. an on-screen console.
func (s *Service) SetTee(w io.Writer) { s.tee = w }

// Spawn starts the logger process.
func (s *Service) Spawn(prio int) (*kernel.Proc, error) {
	p, err := s.k.Spawn(kernel.ProcConfig{Name: "logger", Priority: prio, Entry: s.run})
	if err != nil {
		return nil, err
	}
	s.self = p
	return p, nil
}

// WriteLineString queues s. Lines longer than the slot are truncated and a
// full ring drops the line. Interrupt-safe.
func (s *Service) WriteLineString(str string) {
	st := s.k.DisableInterrupts()
	if s.head-s.tail >= ringLines {
		s.dropped++
		s.k.RestoreInterrupts(st)
		return
	}
	l := &s.ring[s.head%ringLines]
	l.n = uint8(copy(l.buf[:], str))
	s.head++
	if s.self != nil {
		s.k.Send(s.self, sigLine)
	}
	s.k.RestoreInterrupts(st)
}

func (s *Service) WriteLineBytes(b []byte) { s.WriteLineString(string(b)) }

// Dropped returns the number of lines lost to a full ring.
func (s *Service) Dropped() uint32 { return s.dropped }

func (s *Service) run(ctx *kernel.Context) error {
	var buf [maxLine]byte
	var reported uint32
	for {
		for {
			n, ok := s.pop(&buf)
			if !ok {
				break
			}
			s.emit(buf[:n])
		}
		if d := s.dropped; d != reported {
			s.emit([]byte(fmt.Sprintf("logger: dropped %d lines", d-reported)))
			reported = d
		}
		ctx.Wait(sigLine)
	}
}

func (s *Service) pop(dst *[maxLine]byte) (int, bool) {
	st := s.k.DisableInterrupts()
	defer s.k.RestoreInterrupts(st)
	if s.tail == s.head {
		return 0, false
	}
	l := &s.ring[s.tail%ringLines]
	n := copy(dst[:], l.buf[:l.n])
	s.tail++
	return n, true
}

var crlf = []byte("\r\n")

func (s *Service) emit(b []byte) {
	if s.out != nil {
		s.out.WriteLineBytes(b)
	}
	if s.tee == nil {
		return
	}
	_, err := s.tee.Write(b)
	if err == nil {
		_, err = s.tee.Write(crlf)
	}
	if err != nil {
		// A broken tee is detached; the board log keeps working.
		s.tee = nil
		if s.out != nil {
			s.out.WriteLineString("logger: tee: " + err.Error())
		}
	}
}
