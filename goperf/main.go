// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command goperf times the functions in a Go source file.
//
// Usage:
//
//	goperf [OPTION]... PATH
//
// Every top-level function of PATH without parameters is a benchmark,
// except those whose names begin with "_". A function named base is
// timed first and its time is subtracted from the others; without one,
// the overhead of an empty loop is subtracted unless -l is given.
//
// A comment line "// ###" inside a benchmark separates statements run
// once before timing from the timed body.
//
// goperf compiles PATH together with a generated harness, calibrates
// an iteration count for each function so that a run takes about the
// threshold (one second by default) and prints the time per call and
// the time relative to the fastest function:
//
//	2 builder: 31.52ns  1.00
//	1 concat : 96.10ns  3.05
//
// With -s, -b or -r goperf instead prints the generated loop, its
// disassembly or the values each function returns.
//
// Options can also be set in the environment as GOPERF_<OPTION>, such
// as GOPERF_THRESHOLD=0.5, or in a configuration file given by
// --config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

const version = "0.4.2"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line args and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)

	var (
		exit  exitError
		usage *usageError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return int(exit)
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "goperf: %v\nTry 'goperf --help' for more information.\n", usage.err)
		return 2
	}
	fmt.Fprintf(stderr, "goperf: %v\n", err)
	return 1
}

// exitError is an exit status whose cause has already been reported.
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func newCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goperf [OPTION]... PATH",
		Short: "Time the functions in a Go source file",
		Long: `goperf times every parameterless top-level function in a Go source
file and prints a ranked report. Functions whose names begin with "_"
are helpers; a function named base is the baseline.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{fmt.Errorf("expected one PATH, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := loadOptions(cmd, args[0])
			if err != nil {
				return err
			}
			log := newLogger(stderr, o.Verbose)
			defer log.Sync()

			e := &env{
				stdout: stdout,
				stderr: stderr,
				log:    log,
				tty:    isTerminal(stderr),
			}
			if o.showMode() {
				return show(cmd.Context(), o, e)
			}
			return benchmark(cmd.Context(), o, e)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})
	addFlags(cmd.Flags())
	return cmd
}
