// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package measure calibrates iteration counts and times benchmarks.
package measure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aclements/go-moremath/stats"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aclements/goperf/internal/harness"
	"github.com/aclements/goperf/internal/source"
)

const (
	// DefaultThreshold is the target duration of a timed run.
	DefaultThreshold = time.Second

	// EmptyIterations is the iteration count used to time the
	// empty loop.
	EmptyIterations = 1_000_000

	// maxIterations bounds calibrated iteration counts.
	maxIterations = math.MaxInt / 10
)

// A Runner times n iterations of a named benchmark.
// *harness.Client is a Runner.
type Runner interface {
	Run(ctx context.Context, name string, n int, gc bool) (time.Duration, error)
}

// Options control measurement.
type Options struct {
	// Iterations fixes the iteration count. If 0, it is
	// calibrated for every benchmark.
	Iterations int

	// Threshold is the target duration of a timed run. If 0,
	// DefaultThreshold is used.
	Threshold time.Duration

	// GC leaves the garbage collector enabled during timed runs.
	GC bool

	// KeepLoop leaves loop overhead in the timings when the file
	// has no baseline.
	KeepLoop bool

	// Count is the number of timed runs per benchmark. The
	// fastest is kept. If 0, one run is made.
	Count int

	// Progress, if non-nil, is called before each benchmark is
	// timed.
	Progress func(label string, i, total int)

	Logger *zap.Logger
}

func (o *Options) threshold() time.Duration {
	if o.Threshold <= 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Entry is the measurement of one benchmark.
type Entry struct {
	Label      string
	Name       string
	Iterations int

	// NsPerOp is the time per iteration in nanoseconds, less the
	// baseline. It may be negative.
	NsPerOp float64
}

// Result is the measurement of a file.
type Result struct {
	// Baseline is the per-iteration time subtracted from every
	// entry.
	Baseline float64

	Entries []Entry
}

// FuncError is a failure of a single benchmark.
type FuncError struct {
	Label string
	Err   error
}

func (e *FuncError) Error() string {
	msg := e.Err.Error()
	var pe *harness.PanicError
	if errors.As(e.Err, &pe) {
		msg = pe.Message
	}
	return e.Label + ":  " + msg
}

func (e *FuncError) Unwrap() error { return e.Err }

// Calibrate finds the iteration count of name that runs for about
// threshold. Starting at 1, the count grows tenfold until a run takes
// at least a tenth of threshold; the final count is extrapolated from
// that run.
func Calibrate(ctx context.Context, r Runner, name string, threshold time.Duration, gc bool, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for n := 1; ; n *= 10 {
		d, err := r.Run(ctx, name, n, gc)
		if err != nil {
			return 0, err
		}
		log.Debug("calibration probe", zap.String("name", name), zap.Int("n", n), zap.Duration("elapsed", d))
		if d >= threshold/10 || n*10 > maxIterations {
			return extrapolate(n, d, threshold), nil
		}
	}
}

func extrapolate(n int, d, threshold time.Duration) int {
	if d <= 0 {
		return n
	}
	x := float64(threshold) / float64(d) * float64(n)
	switch {
	case x < 1:
		return 1
	case x > maxIterations:
		return maxIterations
	}
	return int(x)
}

// Check runs every benchmark of f once, base included, and returns
// the failures combined with multierr. It stops at the first failure
// that kills the harness.
func Check(ctx context.Context, r Runner, f *source.File) error {
	var errs error
	for _, fn := range all(f) {
		_, err := r.Run(ctx, fn.Name, 1, false)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = multierr.Append(errs, &FuncError{Label: fn.Label, Err: err})
		var pe *harness.PanicError
		if !errors.As(err, &pe) {
			break
		}
	}
	return errs
}

// Baseline returns the per-iteration time to subtract from every
// benchmark of f: the time of base if f has one, otherwise the time
// of an empty loop unless opts.KeepLoop is set.
func Baseline(ctx context.Context, r Runner, f *source.File, opts Options) (float64, error) {
	log := opts.logger()
	switch {
	case f.Base != nil:
		e, err := time1(ctx, r, f.Base, opts)
		if err != nil {
			return 0, err
		}
		log.Debug("baseline", zap.String("name", f.Base.Name), zap.Float64("ns/op", e.NsPerOp))
		return e.NsPerOp, nil
	case !opts.KeepLoop:
		d, err := r.Run(ctx, harness.EmptyName, EmptyIterations, false)
		if err != nil {
			return 0, fmt.Errorf("timing empty loop: %w", err)
		}
		ns := float64(d) / EmptyIterations
		log.Debug("loop overhead", zap.Float64("ns/op", ns))
		return ns, nil
	}
	return 0, nil
}

// Measure checks every benchmark of f, measures the baseline and then
// times each benchmark in source order.
func Measure(ctx context.Context, r Runner, f *source.File, opts Options) (*Result, error) {
	if err := Check(ctx, r, f); err != nil {
		return nil, err
	}
	base, err := Baseline(ctx, r, f, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{Baseline: base}
	for i, fn := range f.Funcs {
		if opts.Progress != nil {
			opts.Progress(fn.Label, i, len(f.Funcs))
		}
		e, err := time1(ctx, r, fn, opts)
		if err != nil {
			return nil, &FuncError{Label: fn.Label, Err: err}
		}
		e.NsPerOp -= base
		res.Entries = append(res.Entries, e)
	}
	return res, nil
}

// time1 times fn without subtracting any baseline.
func time1(ctx context.Context, r Runner, fn *source.Func, opts Options) (Entry, error) {
	n := opts.Iterations
	if n <= 0 {
		var err error
		n, err = Calibrate(ctx, r, fn.Name, opts.threshold(), opts.GC, opts.logger())
		if err != nil {
			return Entry{}, err
		}
	}
	d, err := fastest(ctx, r, fn.Name, n, opts)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Label:      fn.Label,
		Name:       fn.Name,
		Iterations: n,
		NsPerOp:    float64(d) / float64(n),
	}, nil
}

// fastest returns the shortest of opts.Count timed runs.
func fastest(ctx context.Context, r Runner, name string, n int, opts Options) (time.Duration, error) {
	count := max(opts.Count, 1)
	xs := make([]float64, 0, count)
	for range count {
		d, err := r.Run(ctx, name, n, opts.GC)
		if err != nil {
			return 0, err
		}
		xs = append(xs, float64(d))
	}
	lo, _ := stats.Sample{Xs: xs}.Bounds()
	return time.Duration(lo), nil
}

func all(f *source.File) []*source.Func {
	if f.Base == nil {
		return f.Funcs
	}
	return append([]*source.Func{f.Base}, f.Funcs...)
}
