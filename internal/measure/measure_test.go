// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package measure

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/aclements/goperf/internal/harness"
	"github.com/aclements/goperf/internal/source"
)

// fakeRunner runs benchmarks in simulated time.
type fakeRunner struct {
	nsPerOp map[string]float64
	errs    map[string]error

	// jitter is added to successive runs of the same benchmark.
	jitter []time.Duration

	calls []string
	runs  map[string]int
}

func (r *fakeRunner) Run(ctx context.Context, name string, n int, gc bool) (time.Duration, error) {
	r.calls = append(r.calls, fmt.Sprintf("%s/%d/%v", name, n, gc))
	if err := r.errs[name]; err != nil {
		return 0, err
	}
	if r.runs == nil {
		r.runs = make(map[string]int)
	}
	d := time.Duration(r.nsPerOp[name] * float64(n))
	if len(r.jitter) > 0 {
		d += r.jitter[r.runs[name]%len(r.jitter)]
	}
	r.runs[name]++
	return d, nil
}

func parse(t *testing.T, src string) *source.File {
	t.Helper()
	f, err := source.ParseSource("x.go", []byte(src))
	require.NoError(t, err)
	return f
}

func TestCalibrate(t *testing.T) {
	for _, test := range []struct {
		nsPerOp   float64
		threshold time.Duration
		want      int
		probes    int
	}{
		{10, time.Second, 100_000_000, 8},       // probe at 10M takes 100ms
		{1e9, time.Second, 1, 1},                // first probe is 1s
		{3e9, time.Second, 1, 1},                // too slow for even one
		{250, 10 * time.Millisecond, 40_000, 5}, // probe at 10000 takes 2.5ms
		{7, time.Millisecond, 1000000 / 7, 6},   // probe at 100000 takes 700us
		{0, time.Second, 0, 0},                  // never measurable
	} {
		t.Run(fmt.Sprint(test.nsPerOp), func(t *testing.T) {
			r := &fakeRunner{nsPerOp: map[string]float64{"f": test.nsPerOp}}
			n, err := Calibrate(context.Background(), r, "f", test.threshold, false, nil)
			require.NoError(t, err)
			if test.nsPerOp == 0 {
				assert.LessOrEqual(t, n, maxIterations)
				assert.Greater(t, n*10, maxIterations)
				return
			}
			assert.InDelta(t, test.want, n, 1)
			assert.Len(t, r.calls, test.probes)
		})
	}
}

func TestCalibrateError(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeRunner{errs: map[string]error{"f": boom}}
	_, err := Calibrate(context.Background(), r, "f", time.Second, false, nil)
	assert.ErrorIs(t, err, boom)
}

const src = `package p

func base() {}
func a() {}
func b() {}
`

func TestMeasure(t *testing.T) {
	f := parse(t, src)
	r := &fakeRunner{nsPerOp: map[string]float64{"base": 2, "a": 12, "b": 5}}
	var progress []string
	res, err := Measure(context.Background(), r, f, Options{
		Iterations: 1000,
		GC:         true,
		Progress: func(label string, i, total int) {
			progress = append(progress, fmt.Sprintf("%s %d/%d", label, i, total))
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Baseline)
	assert.Equal(t, []Entry{
		{Label: "1 a", Name: "a", Iterations: 1000, NsPerOp: 10},
		{Label: "2 b", Name: "b", Iterations: 1000, NsPerOp: 3},
	}, res.Entries)
	assert.Equal(t, []string{"1 a 0/2", "2 b 1/2"}, progress)
	assert.Equal(t, []string{
		// Check.
		"base/1/false", "a/1/false", "b/1/false",
		// Timed runs.
		"base/1000/true", "a/1000/true", "b/1000/true",
	}, r.calls)
}

func TestBaselineEmptyLoop(t *testing.T) {
	f := parse(t, "package p\nfunc a() {}\n")
	r := &fakeRunner{nsPerOp: map[string]float64{harness.EmptyName: 0.5}}

	ns, err := Baseline(context.Background(), r, f, Options{GC: true})
	require.NoError(t, err)
	assert.Equal(t, 0.5, ns)
	assert.Equal(t, []string{"_empty/1000000/false"}, r.calls)

	r.calls = nil
	ns, err = Baseline(context.Background(), r, f, Options{KeepLoop: true})
	require.NoError(t, err)
	assert.Zero(t, ns)
	assert.Empty(t, r.calls)
}

func TestFastest(t *testing.T) {
	f := parse(t, "package p\nfunc a() {}\n")
	r := &fakeRunner{
		nsPerOp: map[string]float64{"a": 10},
		jitter:  []time.Duration{300, 0, 700},
	}
	res, err := Measure(context.Background(), r, f, Options{Iterations: 100, KeepLoop: true, Count: 3})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, 10.0, res.Entries[0].NsPerOp)
	// One check run plus three timed runs.
	assert.Equal(t, 4, r.runs["a"])
}

func TestCheck(t *testing.T) {
	f := parse(t, src)
	r := &fakeRunner{errs: map[string]error{
		"a": &harness.PanicError{Name: "a", Message: "runtime.Error: index out of range"},
		"b": &harness.PanicError{Name: "b", Message: "*errors.errorString: nope"},
	}}
	err := Check(context.Background(), r, f)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, "1 a:  runtime.Error: index out of range", errs[0].Error())
	assert.Equal(t, "2 b:  *errors.errorString: nope", errs[1].Error())

	var fe *FuncError
	require.ErrorAs(t, errs[1], &fe)
	assert.Equal(t, "2 b", fe.Label)

	_, err = Measure(context.Background(), r, f, Options{Iterations: 1})
	assert.Len(t, multierr.Errors(err), 2)
}

func TestCheckHarnessExit(t *testing.T) {
	f := parse(t, src)
	exit := &harness.ExitError{Summary: "at main.a: out of memory"}
	r := &fakeRunner{errs: map[string]error{"a": exit, "b": exit}}
	err := Check(context.Background(), r, f)
	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], exit)
	assert.Equal(t, []string{"base/1/false", "a/1/false"}, r.calls)
}
