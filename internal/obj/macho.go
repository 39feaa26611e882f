// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/macho"
	"fmt"
	"io"
	"sort"
	"strings"
)

type machoFile struct {
	macho *macho.File
}

func openMachO(r io.ReaderAt) (Obj, error) {
	f, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &machoFile{f}, nil
}

func (f *machoFile) Arch() string {
	switch f.macho.Cpu {
	case macho.CpuAmd64:
		return "amd64"
	case macho.Cpu386:
		return "386"
	case macho.CpuArm64:
		return "arm64"
	}
	return ""
}

func (f *machoFile) Symbols() ([]Sym, error) {
	const (
		N_STAB = 0xe0
		N_TYPE = 0x0e
		N_EXT  = 0x01
		N_SECT = 0x0e
	)

	if f.macho.Symtab == nil {
		return nil, fmt.Errorf("no symbol table")
	}
	var out []Sym
	for _, s := range f.macho.Symtab.Syms {
		if s.Type&N_STAB != 0 {
			continue
		}
		// The Go linker prefixes Mach-O symbols with "_".
		sym := Sym{
			Name:    strings.TrimPrefix(s.Name, "_"),
			Value:   s.Value,
			Kind:    SymUnknown,
			Local:   s.Type&N_EXT == 0,
			section: int(s.Sect),
		}
		if s.Type&N_TYPE != N_SECT {
			sym.Kind = SymUndef
		} else if sect := f.section(sym.section); sect != nil {
			switch {
			case sect.Seg == "__TEXT" && sect.Name == "__text":
				sym.Kind = SymText
			case sect.Seg == "__TEXT" || sect.Seg == "__DATA_CONST":
				sym.Kind = SymROData
			case sect.Name == "__bss" || sect.Name == "__noptrbss":
				sym.Kind = SymBSS
			case sect.Seg == "__DATA":
				sym.Kind = SymData
			}
		}
		out = append(out, sym)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	fillSizes(out, func(section int) uint64 {
		if sect := f.section(section); sect != nil {
			return sect.Addr + sect.Size
		}
		return 0
	})
	return out, nil
}

// section returns the 1-based section i, or nil.
func (f *machoFile) section(i int) *macho.Section {
	if i < 1 || i > len(f.macho.Sections) {
		return nil
	}
	return f.macho.Sections[i-1]
}

func (f *machoFile) SymbolData(s Sym) ([]byte, error) {
	sect := f.section(s.section)
	if sect == nil {
		return nil, fmt.Errorf("symbol %q has no data", s.Name)
	}
	if s.Value < sect.Addr {
		return nil, fmt.Errorf("symbol %q starts before section %q", s.Name, sect.Name)
	}
	return readClipped(sect, s.Value-sect.Addr, sect.Size, s.Size)
}
