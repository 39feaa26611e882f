// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aclements/goperf/internal/harness"
	"github.com/aclements/goperf/internal/measure"
	"github.com/aclements/goperf/internal/report"
	"github.com/aclements/goperf/internal/source"
)

type env struct {
	stdout, stderr io.Writer
	log            *zap.Logger

	// tty is set if stderr is a terminal.
	tty bool
}

// session is a benchmark file with its harness, built and running if
// requested.
type session struct {
	file   *source.File
	prog   *harness.Program
	bin    *harness.Binary
	client *harness.Client
}

func open(ctx context.Context, o *Options, e *env, build bool) (*session, error) {
	f, err := source.Parse(o.Path)
	if err != nil {
		return nil, err
	}
	e.log.Debug("parsed benchmark file",
		zap.String("path", f.Path),
		zap.Int("benchmarks", len(f.Funcs)),
		zap.Bool("base", f.Base != nil),
		zap.Strings("helpers", f.Helpers))
	prog, err := harness.Generate(f)
	if err != nil {
		return nil, err
	}
	s := &session{file: f, prog: prog}
	if !build {
		return s, nil
	}

	s.bin, err = harness.Build(ctx, prog, harness.BuildOptions{
		GoCmd:      o.GoCmd,
		BuildFlags: o.BuildFlags,
		Keep:       o.Keep,
		Logger:     e.log,
	})
	if err != nil {
		return nil, err
	}
	s.client, err = harness.Start(ctx, s.bin.Path, harness.ClientOptions{
		Stderr: e.stderr,
		Logger: e.log,
	})
	if err != nil {
		s.bin.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() error {
	var err error
	if s.client != nil {
		err = multierr.Append(err, s.client.Close())
	}
	if s.bin != nil {
		err = multierr.Append(err, s.bin.Close())
	}
	return err
}

// benchmark times the functions of o.Path and prints the report.
func benchmark(ctx context.Context, o *Options, e *env) error {
	s, err := open(ctx, o, e, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			e.log.Warn("closing harness", zap.Error(cerr))
		}
	}()

	if o.ShowGo && o.Format == "text" {
		fmt.Fprintln(e.stdout, s.client.Version)
	}

	mo := o.measureOptions()
	mo.Logger = e.log
	if e.tty {
		mo.Progress = func(label string, i, total int) {
			fmt.Fprintf(e.stderr, "%s[%d/%d] %s", clearLine, i+1, total, label)
		}
	}
	res, err := measure.Measure(ctx, s.client, s.file, mo)
	if e.tty {
		io.WriteString(e.stderr, clearLine)
	}
	if err != nil {
		return reportFailures(e.stdout, err)
	}

	r := report.New(res.Entries, !o.NoSort)
	if o.Format == "bench" {
		return r.WriteBench(e.stdout, benchConfig(s.client.Version))
	}
	return r.WriteText(e.stdout)
}

// reportFailures prints the benchmark failures in err to w. If err
// consists only of such failures, it returns exit status 1; otherwise
// it returns err.
func reportFailures(w io.Writer, err error) error {
	errs := multierr.Errors(err)
	for _, err := range errs {
		var fe *measure.FuncError
		if !errors.As(err, &fe) {
			return err
		}
	}
	for _, err := range errs {
		fmt.Fprintln(w, err)
	}
	return exitError(1)
}

// benchConfig returns the configuration lines describing a harness
// with the given version reply.
func benchConfig(version string) map[string]string {
	goversion, platform, _ := strings.Cut(version, " ")
	config := map[string]string{"goversion": goversion}
	if goos, goarch, ok := strings.Cut(platform, "/"); ok {
		config["goos"] = goos
		config["goarch"] = goarch
	}
	return config
}
