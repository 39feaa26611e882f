// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/aclements/goperf/internal/loganal"
)

// BinaryName is the file name of the built harness.
const BinaryName = "perfharness"

// BuildOptions control how a harness is built.
type BuildOptions struct {
	// GoCmd is the go command to build with. Default "go".
	GoCmd string

	// BuildFlags are passed to "go build", split with shell
	// quoting rules.
	BuildFlags string

	// TempDir is the parent of the build directory. Default
	// os.TempDir().
	TempDir string

	// Keep preserves the build directory on Close.
	Keep bool

	Logger *zap.Logger
}

// Binary is a built harness.
type Binary struct {
	Path string
	Dir  string

	keep   bool
	logger *zap.Logger
}

// Close removes the build directory.
func (b *Binary) Close() error {
	if b.keep {
		b.logger.Warn("keeping harness build directory", zap.String("dir", b.Dir))
		return nil
	}
	return os.RemoveAll(b.Dir)
}

// BuildError is a failed harness build.
type BuildError struct {
	// Failures are the compiler errors, with positions in the
	// user's file rewritten to its path. Errors in the generated
	// file are omitted if the user's file has any.
	Failures []*loganal.Failure

	// Output is the complete go build output.
	Output string
}

func (e *BuildError) Error() string {
	if len(e.Failures) == 0 {
		return "build failed:\n" + strings.TrimRight(e.Output, "\n")
	}
	lines := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		lines[i] = f.String()
	}
	return "build failed:\n" + strings.Join(lines, "\n")
}

// Build writes prog to a new directory and compiles it.
func Build(ctx context.Context, prog *Program, opts BuildOptions) (*Binary, error) {
	if opts.GoCmd == "" {
		opts.GoCmd = "go"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	flags, err := shellquote.Split(opts.BuildFlags)
	if err != nil {
		return nil, fmt.Errorf("bad build flags %q: %w", opts.BuildFlags, err)
	}

	dir, err := os.MkdirTemp(opts.TempDir, "goperf-")
	if err != nil {
		return nil, err
	}
	bin := &Binary{
		Path:   filepath.Join(dir, BinaryName),
		Dir:    dir,
		keep:   opts.Keep,
		logger: opts.Logger,
	}
	ok := false
	defer func() {
		if !ok {
			bin.Close()
		}
	}()

	goVersion, err := toolchainVersion(ctx, opts.GoCmd)
	if err != nil {
		return nil, err
	}
	files := map[string][]byte{
		"go.mod":    []byte(goMod(goVersion)),
		MainFile:    prog.Main,
		HarnessFile: prog.Harness,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return nil, err
		}
	}

	args := append([]string{"build", "-o", BinaryName}, flags...)
	cmd := exec.CommandContext(ctx, opts.GoCmd, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOWORK=off")
	opts.Logger.Debug("building harness",
		zap.String("dir", dir),
		zap.String("cmd", shellquote.Join(append([]string{opts.GoCmd}, args...)...)))

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fs := loganal.Extract(string(out))
		loganal.Rewrite(fs, MainFile, prog.Source.Path)
		return nil, &BuildError{Failures: userFailures(fs, prog.Source.Path), Output: string(out)}
	}
	ok = true
	return bin, nil
}

// userFailures drops the failures in the generated file if any are
// in the user's file at path. Those are usually echoes of the user's
// errors in a directory that no longer exists.
func userFailures(fs []*loganal.Failure, path string) []*loganal.Failure {
	inUser := false
	for _, f := range fs {
		if f.File == path {
			inUser = true
			break
		}
	}
	if !inUser {
		return fs
	}
	var out []*loganal.Failure
	for _, f := range fs {
		if f.File == "" || filepath.Base(f.File) != HarnessFile {
			out = append(out, f)
		}
	}
	return out
}

var goVersionRe = regexp.MustCompile(`go([0-9]+\.[0-9]+)`)

// toolchainVersion returns the language version of the go command,
// such as "1.22", or "" if it cannot be determined.
func toolchainVersion(ctx context.Context, goCmd string) (string, error) {
	cmd := exec.CommandContext(ctx, goCmd, "env", "GOVERSION")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// Very old toolchains lack GOVERSION.
			return "", nil
		}
		return "", fmt.Errorf("running %s: %w", goCmd, err)
	}
	m := goVersionRe.FindStringSubmatch(string(out))
	if m == nil {
		return "", nil
	}
	return m[1], nil
}

func goMod(goVersion string) string {
	mod := "module perfharness\n"
	if goVersion != "" {
		mod += "\ngo " + goVersion + "\n"
	}
	return mod
}
