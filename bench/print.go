// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Fprint writes bs to w in Go benchmark format. Block configuration
// is written whenever it changes between consecutive benchmarks, and
// the benchmark lines of each block are aligned in columns.
func Fprint(w io.Writer, bs []*Benchmark) error {
	var (
		last  = map[string]string{}
		lines [][]string
		first = true
	)
	flush := func() error {
		err := writeColumns(w, lines)
		lines = lines[:0]
		return err
	}

	for _, b := range bs {
		var changed []string
		for _, k := range configKeys(b, true) {
			v := b.Config[k].RawValue
			if lv, ok := last[k]; ok && lv == v {
				continue
			}
			last[k] = v
			changed = append(changed, k)
		}

		if changed != nil {
			if err := flush(); err != nil {
				return err
			}
			if !first {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			for _, k := range changed {
				if _, err := fmt.Fprintf(w, "%s: %s\n", k, b.Config[k].RawValue); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		first = false
		lines = append(lines, benchLine(b))
	}
	return flush()
}

func configKeys(b *Benchmark, inBlock bool) []string {
	var keys []string
	for k, c := range b.Config {
		if c.InBlock == inBlock {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func benchLine(b *Benchmark) []string {
	name := "Benchmark" + b.Name
	for _, k := range configKeys(b, false) {
		if k == "gomaxprocs" {
			continue
		}
		name += "/" + k + ":" + b.Config[k].RawValue
	}
	if gmp, ok := b.Config["gomaxprocs"]; ok && !gmp.InBlock && gmp.RawValue != "1" {
		name += "-" + gmp.RawValue
	}

	units := make([]string, 0, len(b.Result))
	for k := range b.Result {
		units = append(units, k)
	}
	sort.Slice(units, func(i, j int) bool {
		if unitRank(units[i]) != unitRank(units[j]) {
			return unitRank(units[i]) < unitRank(units[j])
		}
		return units[i] < units[j]
	})

	line := []string{name, strconv.Itoa(b.Iterations)}
	for _, u := range units {
		line = append(line, strconv.FormatFloat(b.Result[u], 'f', -1, 64), u)
	}
	return line
}

// unitRank orders ns/op first, as go test does.
func unitRank(unit string) int {
	switch unit {
	case UnitNsPerOp:
		return -2
	case "MB/s":
		return -1
	}
	return 0
}

func writeColumns(w io.Writer, lines [][]string) error {
	var widths []int
	for _, line := range lines {
		for i, elt := range line {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if len(elt) > widths[i] {
				widths[i] = len(elt)
			}
		}
	}

	var sb strings.Builder
	for _, line := range lines {
		for i, elt := range line {
			switch {
			case i == len(line)-1:
				sb.WriteString(elt)
				sb.WriteByte('\n')
			case i == 1, i > 0 && i%2 == 0:
				// Counts and values are right aligned.
				fmt.Fprintf(&sb, "%*s  ", widths[i], elt)
			default:
				fmt.Fprintf(&sb, "%-*s  ", widths[i], elt)
			}
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
