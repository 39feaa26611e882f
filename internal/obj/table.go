// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import "sort"

// Table facilitates symbol lookup by name and by address.
type Table struct {
	addr []Sym
	name map[string]int
}

// NewTable creates a new table for syms. It reorders syms.
func NewTable(syms []Sym) *Table {
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].Value < syms[j].Value
	})

	// Prefer text symbols if a name is defined more than once.
	name := make(map[string]int, len(syms))
	for i, s := range syms {
		if j, ok := name[s.Name]; ok && syms[j].Kind == SymText {
			continue
		}
		name[s.Name] = i
	}
	return &Table{syms, name}
}

// Name returns the symbol with the given name.
func (t *Table) Name(name string) (Sym, bool) {
	if i, ok := t.name[name]; ok {
		return t.addr[i], true
	}
	return Sym{}, false
}

// Addr returns the symbol containing addr.
func (t *Table) Addr(addr uint64) (Sym, bool) {
	i := sort.Search(len(t.addr), func(i int) bool {
		return addr < t.addr[i].Value
	})
	for ; i > 0; i-- {
		s := t.addr[i-1]
		if s.Kind == SymUndef || s.Value == 0 {
			continue
		}
		if s.Value <= addr && addr < s.Value+s.Size {
			return s, true
		}
		break
	}
	return Sym{}, false
}

// SymName returns the name and base of the symbol containing addr,
// or "", 0 if there is none. It has the signature x/arch expects for
// symbolizing disassembly.
func (t *Table) SymName(addr uint64) (name string, base uint64) {
	if sym, ok := t.Addr(addr); ok {
		return sym.Name, sym.Value
	}
	return "", 0
}
