// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bench reads and writes Go benchmark result lines.
//
// goperf harness binaries reply to timing requests with benchmark
// lines, and goperf can write its own results in the same format so
// they can be compared with benchstat. The format is specified at:
// https://github.com/golang/proposal/blob/master/design/14313-benchmark-format.md
package bench

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Standard result units.
const (
	UnitNsPerOp = "ns/op"
	UnitTotalNs = "total-ns"
)

// Benchmark records the configuration and results of a single
// benchmark run (a single line of a benchmark results file).
type Benchmark struct {
	// Name is the name of the benchmark, without the "Benchmark"
	// prefix and without the trailing GOMAXPROCS number.
	Name string

	// Iterations is the number of times this benchmark executed.
	Iterations int

	// Config is the set of configuration pairs for this
	// Benchmark. These can be specified in both configuration
	// blocks and in individual benchmark lines.
	Config map[string]*Config

	// Result is the set of (unit, value) metrics for this
	// benchmark run.
	Result map[string]float64
}

// Config represents a single key/value configuration pair.
type Config struct {
	// RawValue is the value exactly as written.
	RawValue string

	// InBlock indicates that this value came from a configuration
	// line rather than the benchmark line itself.
	InBlock bool
}

// Elapsed returns the total wall time of the run. Harness replies
// carry it directly as total-ns; otherwise it is derived from ns/op.
func (b *Benchmark) Elapsed() time.Duration {
	if ns, ok := b.Result[UnitTotalNs]; ok {
		return time.Duration(ns)
	}
	return time.Duration(b.Result[UnitNsPerOp] * float64(b.Iterations))
}

var configRe = regexp.MustCompile(`^(\p{Ll}[^\p{Lu}\s\x85\xa0\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}]*):(?:[ \t]+(.*))?$`)

// ParseConfig parses a configuration line of the form "key: value".
func ParseConfig(line string) (key, value string, ok bool) {
	m := configRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Parse parses benchmark results from r. It returns a *Benchmark for
// each benchmark line. Configuration lines apply to all following
// benchmark lines until overridden.
func Parse(r io.Reader) ([]*Benchmark, error) {
	benchmarks := []*Benchmark{}
	config := make(map[string]*Config)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if k, v, ok := ParseConfig(line); ok {
			config[k] = &Config{RawValue: v, InBlock: true}
			continue
		}
		if b, ok := ParseLine(line, config); ok {
			benchmarks = append(benchmarks, b)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return benchmarks, nil
}

// ParseLine parses a single benchmark line. The values in config are
// copied into the result; it may be nil.
func ParseLine(line string, config map[string]*Config) (*Benchmark, bool) {
	f := strings.Fields(line)
	if len(f) < 4 || !strings.HasPrefix(f[0], "Benchmark") {
		return nil, false
	}
	name := f[0][len("Benchmark"):]
	// Harness names are Go identifiers, so unlike "go test"
	// output the first rune may be lower case.
	if next, _ := utf8.DecodeRuneInString(name); name != "" && !unicode.IsLetter(next) && next != '_' {
		return nil, false
	}

	n, err := strconv.Atoi(f[1])
	if err != nil || n <= 0 {
		return nil, false
	}

	b := &Benchmark{
		Iterations: n,
		Config:     make(map[string]*Config, len(config)),
		Result:     make(map[string]float64),
	}
	for k, v := range config {
		b.Config[k] = v
	}

	if strings.Contains(name, "/") {
		parts := strings.Split(name, "/")
		name = parts[0]
		for _, part := range parts[1:] {
			if k, v, ok := strings.Cut(part, ":"); ok {
				b.Config[k] = &Config{RawValue: v}
			}
		}
	} else if i := strings.LastIndex(name, "-"); i >= 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			b.Config["gomaxprocs"] = &Config{RawValue: name[i+1:]}
			name = name[:i]
		}
	}
	b.Name = name

	for i := 2; i+2 <= len(f); i += 2 {
		val, err := strconv.ParseFloat(f[i], 64)
		if err != nil {
			continue
		}
		b.Result[f[i+1]] = val
	}
	if len(b.Result) == 0 {
		return nil, false
	}
	return b, true
}
