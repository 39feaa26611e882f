// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harness

import (
	"go/parser"
	"go/token"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aclements/goperf/internal/source"
)

const demoSrc = `package demo

import (
	"strings"
	"unicode"
)

func _upper(r rune) bool { return unicode.IsUpper(r) }

func base() {}

func join() string {
	s := []string{"a", "b"}
	// ###
	return strings.Join(s, ",")
}

func pair() (n int, ok bool) {
	n = 1
	return n, true
}

func boom() int {
	var m map[string]int
	m["x"] = 1
	return 0
}
`

func generate(t *testing.T, src string) *Program {
	t.Helper()
	f, err := source.ParseSource("demo.go", []byte(src))
	require.NoError(t, err)
	p, err := Generate(f)
	require.NoError(t, err)
	return p
}

func TestGenerate(t *testing.T) {
	p := generate(t, demoSrc)

	assert.Regexp(t, `^package main\n`, string(p.Main))

	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, HarnessFile, p.Harness, 0)
	require.NoError(t, err, "%s", p.Harness)

	var imports []string
	for _, imp := range af.Imports {
		path, _ := strconv.Unquote(imp.Path.Value)
		if imp.Name == nil {
			imports = append(imports, path)
		}
	}
	// unicode is only used by a helper.
	assert.Equal(t, []string{"strings"}, imports)

	for _, name := range []string{"perfBench_base", "perfBench_join", "perfBench_pair", "perfBench_boom", "perfBenchEmpty"} {
		assert.NotNil(t, af.Scope.Lookup(name), name)
	}
	assert.Nil(t, af.Scope.Lookup("perfBench__upper"))
}

func TestWrapper(t *testing.T) {
	p := generate(t, demoSrc)

	join, ok := p.Wrapper("join")
	require.True(t, ok)
	assert.Regexp(t, `s := \[\]string\{"a", "b"\}\n\s*perfT0 := perftime\.Now\(\)`, join)
	assert.Contains(t, join, `perfSink_join_0 = strings.Join(s, ",")`)
	assert.Contains(t, join, "continue perfLoop")

	pair, ok := p.Wrapper("pair")
	require.True(t, ok)
	assert.Contains(t, pair, "var n int")
	assert.Contains(t, pair, "perfSink_pair_0, perfSink_pair_1 = n, true")

	base, ok := p.Wrapper("base")
	require.True(t, ok)
	assert.NotContains(t, base, "perfLoop")

	_, ok = p.Wrapper("_upper")
	assert.False(t, ok)
}

func TestReserved(t *testing.T) {
	for _, src := range []string{
		"package p\nvar perfBenchmarks = 1\nfunc f() {}\n",
		"package p\nfunc perfBench_f() {}\nfunc f() {}\n",
		"package p\nimport perffmt \"fmt\"\nfunc f() { perffmt.Println() }\n",
	} {
		f, err := source.ParseSource("p.go", []byte(src))
		require.NoError(t, err)
		_, err = Generate(f)
		assert.ErrorContains(t, err, "reserved by the harness", src)
	}
}

func TestLocalName(t *testing.T) {
	for path, want := range map[string]string{
		"strings":                    "strings",
		"math/rand/v2":               "rand",
		"gopkg.in/yaml.v3":           "yaml",
		"github.com/mattn/go-isatty": "isatty",
	} {
		assert.Equal(t, want, localName(source.Import{Path: path}), path)
	}
	assert.Equal(t, "x", localName(source.Import{Name: "x", Path: "strings"}))
}
