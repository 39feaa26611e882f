// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"fmt"
	"io"
)

type elfFile struct {
	elf *elf.File
}

func openElf(r io.ReaderAt) (Obj, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &elfFile{f}, nil
}

func (f *elfFile) Arch() string {
	switch f.elf.Machine {
	case elf.EM_X86_64:
		return "amd64"
	case elf.EM_386:
		return "386"
	case elf.EM_AARCH64:
		return "arm64"
	}
	return ""
}

func (f *elfFile) Symbols() ([]Sym, error) {
	syms, err := f.elf.Symbols()
	if err != nil {
		return nil, err
	}

	out := make([]Sym, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) == elf.STT_SECTION || elf.ST_TYPE(s.Info) == elf.STT_FILE {
			continue
		}
		sym := Sym{
			Name:    s.Name,
			Value:   s.Value,
			Size:    s.Size,
			Kind:    SymUnknown,
			Local:   elf.ST_BIND(s.Info) == elf.STB_LOCAL,
			section: int(s.Section),
		}
		switch s.Section {
		case elf.SHN_UNDEF:
			sym.Kind = SymUndef
		case elf.SHN_COMMON:
			sym.Kind = SymBSS
		default:
			if s.Section >= elf.SectionIndex(len(f.elf.Sections)) {
				continue
			}
			sect := f.elf.Sections[s.Section]
			switch sect.Flags & (elf.SHF_WRITE | elf.SHF_ALLOC | elf.SHF_EXECINSTR) {
			case elf.SHF_ALLOC | elf.SHF_EXECINSTR:
				sym.Kind = SymText
			case elf.SHF_ALLOC:
				sym.Kind = SymROData
			case elf.SHF_ALLOC | elf.SHF_WRITE:
				sym.Kind = SymData
				if sect.Type == elf.SHT_NOBITS {
					sym.Kind = SymBSS
				}
			}
		}
		out = append(out, sym)
	}
	return out, nil
}

func (f *elfFile) SymbolData(s Sym) ([]byte, error) {
	if s.section <= 0 || s.section >= len(f.elf.Sections) {
		return nil, fmt.Errorf("symbol %q has no data", s.Name)
	}
	sect := f.elf.Sections[s.section]
	if s.Value < sect.Addr {
		return nil, fmt.Errorf("symbol %q starts before section %q", s.Name, sect.Name)
	}
	return readClipped(sect, s.Value-sect.Addr, sect.Size, s.Size)
}

// readClipped reads size bytes at pos of a section of length limit.
// Bytes past the end of the section read as zero.
func readClipped(r io.ReaderAt, pos, limit, size uint64) ([]byte, error) {
	out := make([]byte, size)
	if pos >= limit {
		return out, nil
	}
	n := size
	if n > limit-pos {
		n = limit - pos
	}
	_, err := r.ReadAt(out[:n], int64(pos))
	return out, err
}
