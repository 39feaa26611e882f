// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report ranks benchmark measurements and prints them.
package report

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"

	"github.com/aclements/goperf/bench"
	"github.com/aclements/goperf/internal/measure"
)

// Row is one line of a report.
type Row struct {
	measure.Entry

	// Ratio is NsPerOp relative to the first row, or NaN if the
	// first row's time is not positive.
	Ratio float64
}

// Report is a list of benchmark results in display order.
type Report struct {
	Rows []Row
}

// New builds a report of entries. If sorted, rows are ordered from
// fastest to slowest; otherwise they keep the order of entries.
func New(entries []measure.Entry, sorted bool) *Report {
	entries = slices.Clone(entries)
	if sorted {
		slices.SortStableFunc(entries, func(a, b measure.Entry) int {
			switch {
			case a.NsPerOp < b.NsPerOp:
				return -1
			case a.NsPerOp > b.NsPerOp:
				return 1
			}
			return 0
		})
	}
	rows := lo.Map(entries, func(e measure.Entry, _ int) Row {
		return Row{Entry: e}
	})
	if len(rows) > 0 {
		ref := rows[0].NsPerOp
		for i := range rows {
			if ref > 0 {
				rows[i].Ratio = rows[i].NsPerOp / ref
			} else {
				rows[i].Ratio = math.NaN()
			}
		}
	}
	return &Report{Rows: rows}
}

// FormatNs formats a time in nanoseconds with thousands separators
// and two decimals.
func FormatNs(ns float64) string {
	return humanize.FormatFloat("#,###.##", ns)
}

func formatRatio(r float64) string {
	if math.IsNaN(r) {
		return fmt.Sprintf("%5s", "-")
	}
	return fmt.Sprintf("%5.2f", r)
}

// WriteText writes the report as aligned text:
//
//	1 label: 1,234.56ns  1.00
func (r *Report) WriteText(w io.Writer) error {
	if len(r.Rows) == 0 {
		return nil
	}
	labelWidth := lo.Max(lo.Map(r.Rows, func(row Row, _ int) int {
		return runewidth.StringWidth(row.Label)
	}))
	times := lo.Map(r.Rows, func(row Row, _ int) string {
		return FormatNs(row.NsPerOp)
	})
	timeWidth := lo.Max(lo.Map(times, func(s string, _ int) int { return len(s) }))

	var sb strings.Builder
	for i, row := range r.Rows {
		fmt.Fprintf(&sb, "%s: %*sns %s\n",
			runewidth.FillRight(row.Label, labelWidth),
			timeWidth, times[i],
			formatRatio(row.Ratio))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteBench writes the report in Go benchmark format, preceded by
// the configuration lines in config.
func (r *Report) WriteBench(w io.Writer, config map[string]string) error {
	block := make(map[string]*bench.Config, len(config))
	for k, v := range config {
		block[k] = &bench.Config{RawValue: v, InBlock: true}
	}
	bs := lo.Map(r.Rows, func(row Row, _ int) *bench.Benchmark {
		return &bench.Benchmark{
			Name:       row.Name,
			Iterations: row.Iterations,
			Config:     block,
			Result:     map[string]float64{bench.UnitNsPerOp: row.NsPerOp},
		}
	})
	return bench.Fprint(w, bs)
}
