package main

import (
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

type summary struct {
	n             int
	mean, stddev  float64
	p50, p99, max float64
}

func summarize(samples []float64) summary {
	if len(samples) == 0 {
		return summary{}
	}
	x := slices.Clone(samples)
	slices.Sort(x)
	s := summary{n: len(x), max: x[len(x)-1]}
	if len(x) > 1 {
		s.mean, s.stddev = stat.MeanStdDev(x, nil)
	} else {
		s.mean = x[0]
	}
	s.p50 = stat.Quantile(0.5, stat.Empirical, x, nil)
	s.p99 = stat.Quantile(0.99, stat.Empirical, x, nil)
	return s
}
