// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm disassembles machine code into Go assembler syntax.
package asm

import (
	"fmt"
	"io"
)

// Seq is a sequence of instructions.
type Seq interface {
	Len() int
	Get(i int) Inst
}

// Inst is a single machine instruction.
type Inst interface {
	// GoSyntax returns the Go assembler syntax representation of
	// this instruction. symname, if non-nil, must return the name
	// and base of the symbol containing address addr, or "" if
	// symbol lookup fails.
	GoSyntax(symname func(addr uint64) (string, uint64)) string

	// PC returns the address of this instruction.
	PC() uint64

	// Size returns the encoded length of this instruction in bytes.
	Size() int
}

// Disasm decodes text, which starts at address pc, as machine code
// for the given GOARCH.
func Disasm(arch string, text []byte, pc uint64) (Seq, error) {
	switch arch {
	case "amd64":
		return disasmX86(text, pc, 64), nil
	case "386":
		return disasmX86(text, pc, 32), nil
	case "arm64":
		return disasmARM64(text, pc), nil
	}
	return nil, fmt.Errorf("disassembly not supported on %q", arch)
}

// Fprint writes one line per instruction of seq to w.
func Fprint(w io.Writer, seq Seq, symname func(uint64) (string, uint64)) error {
	for i := 0; i < seq.Len(); i++ {
		inst := seq.Get(i)
		if _, err := fmt.Fprintf(w, "\t%#x\t%s\n", inst.PC(), inst.GoSyntax(symname)); err != nil {
			return err
		}
	}
	return nil
}
