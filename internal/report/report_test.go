// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aclements/goperf/bench"
	"github.com/aclements/goperf/internal/measure"
)

var entries = []measure.Entry{
	{Label: "1 concat", Name: "concat", Iterations: 1000, NsPerOp: 1234.5},
	{Label: "2 join", Name: "join", Iterations: 50000, NsPerOp: 10},
	{Label: "3 builder", Name: "builder", Iterations: 80000, NsPerOp: 25},
	{Label: "4 same", Name: "same", Iterations: 50000, NsPerOp: 10},
}

func labels(r *Report) []string {
	var ls []string
	for _, row := range r.Rows {
		ls = append(ls, row.Label)
	}
	return ls
}

func TestNewSorted(t *testing.T) {
	r := New(entries, true)
	assert.Equal(t, []string{"2 join", "4 same", "3 builder", "1 concat"}, labels(r))
	assert.Equal(t, 1.0, r.Rows[0].Ratio)
	assert.Equal(t, 2.5, r.Rows[2].Ratio)
	assert.InDelta(t, 123.45, r.Rows[3].Ratio, 1e-9)

	// The input is not reordered.
	assert.Equal(t, "1 concat", entries[0].Label)
}

func TestNewUnsorted(t *testing.T) {
	r := New(entries, false)
	assert.Equal(t, []string{"1 concat", "2 join", "3 builder", "4 same"}, labels(r))
	assert.Equal(t, 1.0, r.Rows[0].Ratio)
	assert.InDelta(t, 10/1234.5, r.Rows[1].Ratio, 1e-12)
}

func TestNonPositiveReference(t *testing.T) {
	r := New([]measure.Entry{
		{Label: "1 a", NsPerOp: -0.3},
		{Label: "2 b", NsPerOp: 4},
	}, true)
	for _, row := range r.Rows {
		assert.True(t, math.IsNaN(row.Ratio))
	}

	var sb strings.Builder
	require.NoError(t, r.WriteText(&sb))
	assert.Equal(t, "1 a: -0.30ns     -\n2 b:  4.00ns     -\n", sb.String())
}

func TestWriteText(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, New(entries, true).WriteText(&sb))
	assert.Equal(t, `2 join   :    10.00ns  1.00
4 same   :    10.00ns  1.00
3 builder:    25.00ns  2.50
1 concat : 1,234.50ns 123.45
`, sb.String())
}

func TestWriteTextWide(t *testing.T) {
	r := New([]measure.Entry{
		{Label: "1 文字", NsPerOp: 2},
		{Label: "2 abcd", NsPerOp: 3},
	}, false)
	var sb strings.Builder
	require.NoError(t, r.WriteText(&sb))
	assert.Equal(t, "1 文字: 2.00ns  1.00\n2 abcd: 3.00ns  1.50\n", sb.String())
}

func TestWriteTextEmpty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, New(nil, true).WriteText(&sb))
	assert.Empty(t, sb.String())
}

func TestWriteBench(t *testing.T) {
	var sb strings.Builder
	err := New(entries[:2], false).WriteBench(&sb, map[string]string{"goversion": "go1.22.1 linux/amd64"})
	require.NoError(t, err)
	assert.Equal(t, `goversion: go1.22.1 linux/amd64

Benchmarkconcat   1000  1234.5  ns/op
Benchmarkjoin    50000      10  ns/op
`, sb.String())

	bs, err := bench.Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Len(t, bs, 2)
	assert.Equal(t, "join", bs[1].Name)
	assert.Equal(t, "go1.22.1 linux/amd64", bs[1].Config["goversion"].RawValue)
}
