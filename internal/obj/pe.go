// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/pe"
	"fmt"
	"io"
	"sort"
)

type peFile struct {
	pe        *pe.File
	imageBase uint64
}

func openPE(r io.ReaderAt) (Obj, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}

	var imageBase uint64
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
	default:
		return nil, fmt.Errorf("PE header has unexpected type")
	}

	return &peFile{f, imageBase}, nil
}

func (f *peFile) Arch() string {
	switch f.pe.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "amd64"
	case pe.IMAGE_FILE_MACHINE_I386:
		return "386"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "arm64"
	}
	return ""
}

func (f *peFile) Symbols() ([]Sym, error) {
	const (
		IMAGE_SYM_UNDEFINED = 0
		IMAGE_SYM_ABSOLUTE  = -1
		IMAGE_SYM_DEBUG     = -2

		IMAGE_SYM_CLASS_STATIC = 3

		IMAGE_SCN_CNT_CODE               = 0x20
		IMAGE_SCN_CNT_INITIALIZED_DATA   = 0x40
		IMAGE_SCN_CNT_UNINITIALIZED_DATA = 0x80
		IMAGE_SCN_MEM_WRITE              = 0x80000000
	)

	var out []Sym
	for _, s := range f.pe.Symbols {
		sym := Sym{Name: s.Name, Value: uint64(s.Value), Kind: SymUnknown, section: int(s.SectionNumber)}
		switch s.SectionNumber {
		case IMAGE_SYM_UNDEFINED:
			sym.Kind = SymUndef
		case IMAGE_SYM_ABSOLUTE, IMAGE_SYM_DEBUG:
		default:
			if int(s.SectionNumber) < 1 || int(s.SectionNumber) > len(f.pe.Sections) {
				continue
			}
			sect := f.pe.Sections[s.SectionNumber-1]
			c := sect.Characteristics
			switch {
			case c&IMAGE_SCN_CNT_CODE != 0:
				sym.Kind = SymText
			case c&IMAGE_SCN_CNT_INITIALIZED_DATA != 0 && c&IMAGE_SCN_MEM_WRITE != 0:
				sym.Kind = SymData
			case c&IMAGE_SCN_CNT_INITIALIZED_DATA != 0:
				sym.Kind = SymROData
			case c&IMAGE_SCN_CNT_UNINITIALIZED_DATA != 0:
				sym.Kind = SymBSS
			}
			sym.Local = s.StorageClass == IMAGE_SYM_CLASS_STATIC
			sym.Value += f.imageBase + uint64(sect.VirtualAddress)
		}
		out = append(out, sym)
	}

	// PE symbols carry no size.
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	fillSizes(out, func(section int) uint64 {
		if section < 1 || section > len(f.pe.Sections) {
			return 0
		}
		sect := f.pe.Sections[section-1]
		return f.imageBase + uint64(sect.VirtualAddress) + uint64(sect.VirtualSize)
	})
	return out, nil
}

func (f *peFile) SymbolData(s Sym) ([]byte, error) {
	if s.section < 1 || s.section > len(f.pe.Sections) {
		return nil, fmt.Errorf("symbol %q has no data", s.Name)
	}
	sect := f.pe.Sections[s.section-1]
	start := f.imageBase + uint64(sect.VirtualAddress)
	if s.Value < start {
		return nil, fmt.Errorf("symbol %q starts before section %q", s.Name, sect.Name)
	}
	return readClipped(sect, s.Value-start, uint64(sect.Size), s.Size)
}
