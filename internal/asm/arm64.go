// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"bytes"

	"golang.org/x/arch/arm64/arm64asm"
)

type arm64Seq struct {
	insts []arm64Inst
	text  *bytes.Reader
}

func (s *arm64Seq) Len() int {
	return len(s.insts)
}

func (s *arm64Seq) Get(i int) Inst {
	return &s.insts[i]
}

func disasmARM64(text []byte, pc uint64) Seq {
	s := &arm64Seq{text: bytes.NewReader(text)}
	base := pc
	for len(text) > 0 {
		inst, err := arm64asm.Decode(text)
		ok := err == nil
		s.insts = append(s.insts, arm64Inst{inst, ok, pc, base, s.text})
		if len(text) < 4 {
			break
		}
		text = text[4:]
		pc += 4
	}
	return s
}

type arm64Inst struct {
	arm64asm.Inst
	ok   bool
	pc   uint64
	base uint64
	text *bytes.Reader
}

func (i *arm64Inst) GoSyntax(symname func(uint64) (string, uint64)) string {
	if !i.ok {
		return "?"
	}
	return arm64asm.GoSyntax(i.Inst, i.pc, symname, textReader{i.text, i.base})
}

func (i *arm64Inst) PC() uint64 {
	return i.pc
}

func (i *arm64Inst) Size() int {
	return 4
}

// textReader reads text by address rather than offset, so
// PC-relative literal loads can be resolved.
type textReader struct {
	r    *bytes.Reader
	base uint64
}

func (t textReader) ReadAt(p []byte, addr int64) (int, error) {
	return t.r.ReadAt(p, addr-int64(t.base))
}
