// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, test := range []struct {
		name  string
		input string
		want  []*Benchmark
	}{
		{"basic", `
BenchmarkX	1	2 ns/op 3 MB/s`,
			[]*Benchmark{
				{"X", 1, map[string]*Config{}, map[string]float64{"ns/op": 2, "MB/s": 3}},
			},
		},

		{"short name", `
Benchmark	1	2 ns/op`,
			[]*Benchmark{
				{"", 1, map[string]*Config{}, map[string]float64{"ns/op": 2}},
			},
		},

		{"lower case identifiers", `
Benchmarkslice_append	100	2.5 ns/op	250 total-ns
Benchmark_x	1	2 ns/op`,
			[]*Benchmark{
				{"slice_append", 100, map[string]*Config{}, map[string]float64{"ns/op": 2.5, "total-ns": 250}},
				{"_x", 1, map[string]*Config{}, map[string]float64{"ns/op": 2}},
			},
		},

		{"bad names", `
Benchmark1	1	2 ns/op
benchmarkx	1	2 ns/op
Benchmark.x	1	2 ns/op`,
			[]*Benchmark{},
		},

		{"short lines", `
BenchmarkX
BenchmarkX	1
BenchmarkX	1	2
BenchmarkX	0	2 ns/op`,
			[]*Benchmark{},
		},

		{"gomaxprocs suffix", `
BenchmarkX-4	1	2 ns/op`,
			[]*Benchmark{
				{"X", 1, map[string]*Config{
					"gomaxprocs": {"4", false},
				}, map[string]float64{"ns/op": 2}},
			},
		},

		{"per-benchmark config", `
BenchmarkX/a:20/b:abc	1	2 ns/op`,
			[]*Benchmark{
				{"X", 1, map[string]*Config{
					"a": {"20", false},
					"b": {"abc", false},
				}, map[string]float64{"ns/op": 2}},
			},
		},

		{"block config", `
goversion: go1.22.1 linux/amd64
blank:
#not-config: x
Not-config: x
BenchmarkX	1	2 ns/op`,
			[]*Benchmark{
				{"X", 1, map[string]*Config{
					"goversion": {"go1.22.1 linux/amd64", true},
					"blank":     {"", true},
				}, map[string]float64{"ns/op": 2}},
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			bs, err := Parse(strings.NewReader(test.input))
			require.NoError(t, err)
			assert.Equal(t, test.want, bs)
		})
	}
}

func TestParseConfig(t *testing.T) {
	k, v, ok := ParseConfig("goversion: go1.22.1 linux/amd64")
	require.True(t, ok)
	assert.Equal(t, "goversion", k)
	assert.Equal(t, "go1.22.1 linux/amd64", v)

	_, _, ok = ParseConfig("panic: \"boom\"x")
	assert.True(t, ok, "panic replies are shaped like config lines")

	_, _, ok = ParseConfig("BenchmarkX 1 2 ns/op")
	assert.False(t, ok)
}

func TestElapsed(t *testing.T) {
	b, ok := ParseLine("Benchmarkf\t1000\t2.5 ns/op\t2500 total-ns", nil)
	require.True(t, ok)
	assert.Equal(t, 2500*time.Nanosecond, b.Elapsed())

	b, ok = ParseLine("Benchmarkf\t1000\t2.5 ns/op", nil)
	require.True(t, ok)
	assert.Equal(t, 2500*time.Nanosecond, b.Elapsed())
}

func TestFprint(t *testing.T) {
	block := map[string]*Config{"goversion": {"go1.22", true}}
	bs := []*Benchmark{
		{"X", 1000, block, map[string]float64{"ns/op": 12.5}},
		{"yy", 10, block, map[string]float64{"ns/op": 3}},
	}
	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, bs))
	assert.Equal(t, "goversion: go1.22\n\n"+
		"BenchmarkX   1000  12.5  ns/op\n"+
		"Benchmarkyy    10     3  ns/op\n", buf.String())

	// Round trip through the parser.
	got, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "yy", got[1].Name)
	assert.Equal(t, 3.0, got[1].Result["ns/op"])
}

func TestFprintConfigChange(t *testing.T) {
	bs := []*Benchmark{
		{"A", 1, map[string]*Config{"commit": {"1", true}}, map[string]float64{"ns/op": 1}},
		{"B", 1, map[string]*Config{"commit": {"2", true}, "gomaxprocs": {"8", false}}, map[string]float64{"ns/op": 1}},
	}
	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, bs))
	assert.Equal(t, "commit: 1\n\nBenchmarkA  1  1  ns/op\n\ncommit: 2\n\nBenchmarkB-8  1  1  ns/op\n", buf.String())
}
