// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/aclements/goperf/internal/asm"
	"github.com/aclements/goperf/internal/harness"
	"github.com/aclements/goperf/internal/obj"
	"github.com/aclements/goperf/internal/source"
)

type resulter interface {
	Result(ctx context.Context, name string) (string, error)
}

type lister interface {
	List(w io.Writer, sym string) error
}

// show prints the information selected by the show flags for each
// benchmark of o.Path. The harness is only built if needed.
func show(ctx context.Context, o *Options, e *env) error {
	build := o.ShowAsm || o.ShowResults || o.ShowGo
	s, err := open(ctx, o, e, build)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			e.log.Warn("closing harness", zap.Error(cerr))
		}
	}()

	if o.ShowGo {
		fmt.Fprintln(e.stdout, s.client.Version)
	}
	var (
		res resulter
		dis lister
	)
	if o.ShowResults {
		res = s.client
	}
	if o.ShowAsm {
		d, err := newDisassembler(s.bin.Path)
		if err != nil {
			return err
		}
		defer d.Close()
		dis = d
	}
	return writeShow(ctx, e.stdout, s.file, s.prog, res, dis, o.ShowSource)
}

// writeShow prints, for each benchmark of f, its result if res is
// non-nil, its generated loop if showSource, and its disassembly if
// dis is non-nil.
func writeShow(ctx context.Context, w io.Writer, f *source.File, prog *harness.Program, res resulter, dis lister, showSource bool) error {
	for _, fn := range f.Funcs {
		fmt.Fprintf(w, "%s:\n", fn.Label)

		if res != nil {
			r, err := res.Result(ctx, fn.Name)
			var pe *harness.PanicError
			switch {
			case errors.As(err, &pe):
				r = pe.Message
			case err != nil:
				return err
			}
			fmt.Fprintf(w, ">> Result: %s\n", r)
		}

		if showSource {
			src, _ := prog.Wrapper(fn.Name)
			fmt.Fprintf(w, ">> Source:\n%s\n", src)
		}

		if dis != nil {
			fmt.Fprintln(w, ">> Disassembly:")
			if err := dis.List(w, harness.WrapperSymbol(fn.Name)); err != nil {
				fmt.Fprintf(w, "\t%v\n", err)
			}
		}
	}
	return nil
}

// disassembler lists functions of an executable.
type disassembler struct {
	f    *os.File
	o    obj.Obj
	syms *obj.Table
}

func newDisassembler(path string) (*disassembler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	o, err := obj.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	syms, err := o.Symbols()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: reading symbols: %w", path, err)
	}
	return &disassembler{f: f, o: o, syms: obj.NewTable(syms)}, nil
}

func (d *disassembler) List(w io.Writer, sym string) error {
	s, ok := d.syms.Name(sym)
	if !ok || s.Kind != obj.SymText {
		return fmt.Errorf("no text symbol %s", sym)
	}
	data, err := d.o.SymbolData(s)
	if err != nil {
		return err
	}
	seq, err := asm.Disasm(d.o.Arch(), data, s.Value)
	if err != nil {
		return err
	}
	return asm.Fprint(w, seq, d.syms.SymName)
}

func (d *disassembler) Close() error {
	return d.f.Close()
}
