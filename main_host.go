//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"ember/app"
	"ember/emberos/arch"
	"ember/hal"
)

func main() {
	var hcfg hal.HeadlessConfig
	cfg := app.DefaultConfig()
	var archName string
	var tickMicros, quantum uint
	flag.BoolVar(&hcfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&hcfg.Hz, "hz", 60, "Frame rate in headless mode.")
	flag.Uint64Var(&hcfg.Frames, "frames", 0, "Stop after N frames in headless mode (0 = run forever).")
	flag.UintVar(&tickMicros, "tick-us", 1000, "Scheduler tick period in microseconds.")
	flag.BoolVar(&hcfg.Board.Quiet, "quiet", false, "Do not log LED transitions.")
	flag.BoolVar(&cfg.Kernel.Preemptive, "preempt", cfg.Kernel.Preemptive, "Preempt on wakeups and quantum expiry.")
	flag.UintVar(&quantum, "quantum", uint(cfg.Kernel.Quantum), "Round-robin quantum in ticks (0 = off).")
	flag.StringVar(&archName, "arch", cfg.Kernel.Layout.Name, "Stack layout: cortex-m, avr, msp430, riscv.")
	flag.BoolVar(&cfg.Bare, "bare", false, "Run the polled timer loop without a scheduler.")
	flag.BoolVar(&cfg.ExitAfterBench, "bench-exit", false, "Exit once the message benchmark finished.")
	flag.Parse()

	l, err := arch.LayoutByName(archName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.Kernel.Layout = l
	cfg.Kernel.Quantum = uint32(quantum)
	hcfg.Board.TickMicros = uint32(tickMicros)
	cfg.Kernel.IdleStackWords = l.MinWords()

	newApp := func(h hal.HAL) func() error { return app.New(h, cfg) }

	if hcfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, newApp, hcfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(newApp, hcfg.Board); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
