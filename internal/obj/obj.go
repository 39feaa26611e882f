// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package obj reads symbols and machine code from executables.
package obj

import (
	"fmt"
	"io"
)

// Obj is an opened executable.
type Obj interface {
	// Arch returns the GOARCH of the executable's machine code,
	// or "" if it is not known.
	Arch() string

	Symbols() ([]Sym, error)
	SymbolData(s Sym) ([]byte, error)
}

type Sym struct {
	Name        string
	Value, Size uint64
	Kind        SymKind
	Local       bool
	section     int
}

type SymKind uint8

const (
	SymUnknown SymKind = '?'
	SymText    SymKind = 'T'
	SymData    SymKind = 'D'
	SymROData  SymKind = 'R'
	SymBSS     SymKind = 'B'
	SymUndef   SymKind = 'U'
)

// Open attempts to open r as an ELF, PE or Mach-O file.
func Open(r io.ReaderAt) (Obj, error) {
	if f, err := openElf(r); err == nil {
		return f, nil
	}
	if f, err := openMachO(r); err == nil {
		return f, nil
	}
	if f, err := openPE(r); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unrecognized object file format")
}

// fillSizes sets the size of each symbol in syms, which must be
// sorted by address, to the distance to the next symbol in the same
// section. The last symbol of a section extends to end(section).
func fillSizes(syms []Sym, end func(section int) uint64) {
	for i := range syms {
		s := &syms[i]
		if s.Kind == SymUndef {
			continue
		}
		if i+1 < len(syms) && syms[i+1].section == s.section {
			s.Size = syms[i+1].Value - s.Value
			continue
		}
		if e := end(s.section); e > s.Value {
			s.Size = e - s.Value
		}
	}
}
