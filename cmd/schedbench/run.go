package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ember/emberos/arch"
	"ember/emberos/kernel"
)

var (
	runOpts = struct {
		workers    int
		rounds     int
		unit       uint32
		quantum    uint32
		preemptive bool
		deferred   uint32
		arch       string
		runs       int
		jobs       int
		samples    int
		tick       time.Duration
		timeout    time.Duration
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the workloads and print statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := benchOptions()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), runOpts.timeout)
			defer cancel()
			results, err := runAll(ctx, opts, runOpts.runs, runOpts.jobs)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), opts, results)
		},
	}
)

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runOpts.workers, "workers", "w", 6, "Message ring size.")
	f.IntVarP(&runOpts.rounds, "rounds", "r", 23, "Messages each worker sends.")
	f.Uint32VarP(&runOpts.unit, "unit", "u", 1, "Ticks per delay unit.")
	f.Uint32Var(&runOpts.quantum, "quantum", 10, "Round-robin quantum in ticks (0 = off).")
	f.BoolVar(&runOpts.preemptive, "preemptive", true, "Preemptive scheduling.")
	f.Uint32Var(&runOpts.deferred, "deferred", 1, "Ticks a wakeup from a board interrupt may wait for preemption.")
	f.StringVar(&runOpts.arch, "arch", arch.CortexM.Name, "Stack layout: cortex-m, avr, msp430, riscv.")
	f.IntVarP(&runOpts.runs, "runs", "n", 4, "Independent kernels to run.")
	f.IntVarP(&runOpts.jobs, "jobs", "j", 0, "Kernels running at once (0 = all).")
	f.IntVar(&runOpts.samples, "samples", 64, "Wake latency samples per kernel.")
	f.DurationVar(&runOpts.tick, "tick", 200*time.Microsecond, "Tick period.")
	f.DurationVar(&runOpts.timeout, "timeout", time.Minute, "Overall time limit.")
}

func benchOptions() (options, error) {
	l, err := arch.LayoutByName(runOpts.arch)
	if err != nil {
		return options{}, err
	}
	if runOpts.workers <= 0 || runOpts.workers > len(ringDelays) {
		return options{}, fmt.Errorf("--workers must be in 1..%d", len(ringDelays))
	}
	kcfg := kernel.DefaultConfig()
	kcfg.Layout = l
	kcfg.IdleStackWords = l.MinWords()
	kcfg.Preemptive = runOpts.preemptive
	kcfg.Quantum = runOpts.quantum
	kcfg.DeferredPreemptTicks = runOpts.deferred
	return options{
		kernel:  kcfg,
		delays:  ringDelays[:runOpts.workers],
		rounds:  runOpts.rounds,
		unit:    runOpts.unit,
		samples: runOpts.samples,
		tick:    runOpts.tick,
	}, nil
}

// runAll runs n kernels, at most jobs at a time.
func runAll(ctx context.Context, opts options, n, jobs int) ([]result, error) {
	results := make([]result, n)
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i := range results {
		g.Go(func() error {
			r, err := runOne(ctx, opts)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func report(w io.Writer, opts options, results []result) error {
	var lat []float64
	var failed int
	fmt.Fprintf(w, "layout=%s preemptive=%t quantum=%d deferred=%d workers=%d rounds=%d\n",
		opts.kernel.Layout.Name, opts.kernel.Preemptive, opts.kernel.Quantum,
		opts.kernel.DeferredPreemptTicks, len(opts.delays), opts.rounds)
	for i, r := range results {
		status := "ok"
		if r.checksum != r.want {
			status = "MISMATCH"
			failed++
		}
		fmt.Fprintf(w, "run %-3d checksum=%#08x %-8s ticks=%-6d switches=%d\n", i, r.checksum, status, r.ticks, r.switches)
		lat = append(lat, r.latency...)
	}
	s := summarize(lat)
	fmt.Fprintf(w, "wake latency (ticks): n=%d mean=%.3f stddev=%.3f p50=%.0f p99=%.0f max=%.0f\n",
		s.n, s.mean, s.stddev, s.p50, s.p99, s.max)
	if failed > 0 {
		return fmt.Errorf("%d of %d runs produced a wrong checksum", failed, len(results))
	}
	return nil
}
