// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harness

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aclements/goperf/internal/loganal"
	"github.com/aclements/goperf/internal/source"
)

func needGo(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping harness build in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not found")
	}
}

func TestBuildAndRun(t *testing.T) {
	needGo(t)
	ctx := context.Background()

	p := generate(t, demoSrc)
	bin, err := Build(ctx, p, BuildOptions{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer bin.Close()

	c, err := Start(ctx, bin.Path, ClientOptions{})
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, strings.HasPrefix(c.Version, "go"), c.Version)

	for _, name := range []string{EmptyName, "base", "join", "pair"} {
		d, err := c.Run(ctx, name, 1000, false)
		require.NoError(t, err, name)
		assert.Positive(t, d, name)
	}

	r, err := c.Result(ctx, "join")
	require.NoError(t, err)
	assert.Equal(t, `"a,b"`, r)

	r, err = c.Result(ctx, "pair")
	require.NoError(t, err)
	assert.Equal(t, "1, true", r)

	r, err = c.Result(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, NoResult, r)

	_, err = c.Run(ctx, "boom", 1, true)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "assignment to entry in nil map")

	require.NoError(t, c.Close())
	require.NoError(t, bin.Close())
	_, err = os.Stat(bin.Dir)
	assert.True(t, os.IsNotExist(err))
}

const noisySrc = `package noisy

import (
	"fmt"
	"os"
)

var out = os.Stdout

func init() {
	fmt.Println("hello from init")
}

func hello() int {
	fmt.Fprintln(out, "hello from hello")
	return 1
}
`

func TestBuildStdout(t *testing.T) {
	needGo(t)
	ctx := context.Background()

	bin, err := Build(ctx, generate(t, noisySrc), BuildOptions{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer bin.Close()

	var stderr bytes.Buffer
	c, err := Start(ctx, bin.Path, ClientOptions{Stderr: &stderr})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Run(ctx, "hello", 3, false)
	require.NoError(t, err)
	r, err := c.Result(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "1", r)

	require.NoError(t, c.Close())
	assert.Contains(t, stderr.String(), "hello from init\n")
	assert.Equal(t, 4, strings.Count(stderr.String(), "hello from hello\n"))
}

func TestBuildError(t *testing.T) {
	needGo(t)
	path := filepath.Join(t.TempDir(), "bad.go")
	src := "package bad\n\nfunc f() int {\n\treturn undefinedName\n}\n"
	f, err := source.ParseSource(path, []byte(src))
	require.NoError(t, err)
	p, err := Generate(f)
	require.NoError(t, err)

	_, err = Build(context.Background(), p, BuildOptions{TempDir: t.TempDir()})
	var be *BuildError
	require.ErrorAs(t, err, &be)
	var found bool
	for _, f := range be.Failures {
		if f.File == path {
			found = true
			assert.Equal(t, 4, f.Line)
			assert.Contains(t, f.Message, "undefined: undefinedName")
		}
	}
	assert.True(t, found, "no failure in %s:\n%s", path, be.Output)
	assert.NotContains(t, be.Error(), HarnessFile)
}

func TestUserFailures(t *testing.T) {
	user := &loganal.Failure{File: "/src/p.go", Line: 4, Message: "undefined: x"}
	gen := &loganal.Failure{File: "./" + HarnessFile, Line: 25, Message: "undefined: x"}
	crash := &loganal.Failure{Message: "compiler crashed"}

	assert.Equal(t, []*loganal.Failure{user, crash}, userFailures([]*loganal.Failure{user, gen, crash}, "/src/p.go"))
	// Without user errors, the generated file's are all there is.
	assert.Equal(t, []*loganal.Failure{gen}, userFailures([]*loganal.Failure{gen}, "/src/p.go"))
}

func TestKeep(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	b := &Binary{Dir: dir, keep: true, logger: zap.New(core)}
	require.NoError(t, b.Close())

	_, err := os.Stat(dir)
	assert.NoError(t, err)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, dir, entries[0].ContextMap()["dir"])
}

func TestBuildFlags(t *testing.T) {
	p := generate(t, demoSrc)
	_, err := Build(context.Background(), p, BuildOptions{BuildFlags: `-gcflags='-N`})
	assert.ErrorContains(t, err, "bad build flags")
}
