// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source finds the benchmark functions in a Go source file.
//
// A benchmark is a top-level function with no receiver, no type
// parameters and no parameters whose name does not begin with "_".
// The function named "base", if any, is the baseline: its
// per-iteration time is subtracted from every other benchmark.
// Everything else in the file is setup and is compiled into the
// harness unchanged.
//
// Inside a benchmark, a line comment consisting of "// ###" splits
// the body. Statements before it run once before timing starts;
// statements after it are the timed loop body.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"strconv"
	"strings"
)

// BaseName is the name of the baseline benchmark.
const BaseName = "base"

// Marker is the comment text that separates init from the loop body.
const Marker = "// ###"

// ErrNoBenchmarks is returned for files without benchmark functions.
var ErrNoBenchmarks = errors.New("no benchmark functions")

// File is a parsed benchmark source file.
type File struct {
	Path    string
	Src     []byte
	Package string

	// Imports are the file's named and unnamed imports. Blank,
	// dot and cgo imports are omitted.
	Imports []Import

	// Funcs are the benchmarks in source order, excluding Base.
	Funcs []*Func

	// Base is the baseline benchmark, or nil.
	Base *Func

	// Helpers are the names of top-level functions that are not
	// benchmarks.
	Helpers []string

	pkgStart, pkgEnd int
}

// Import is a single import spec.
type Import struct {
	Name string // "" if unnamed
	Path string
}

// Func is a benchmark function.
type Func struct {
	Name string

	// Label is the display name: "<n> <name>", numbered from 1 in
	// source order, or just "base" for the baseline.
	Label string

	// Index is the 1-based position among benchmarks, 0 for Base.
	Index int

	Pos     token.Position
	Results []Result

	// HasMarker reports whether the body contains the init/loop
	// marker.
	HasMarker bool
}

// Result is one result parameter of a benchmark.
type Result struct {
	Name string // "" if unnamed
	Type string
}

// Parse reads and parses the benchmark file at path.
func Parse(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSource(path, src)
}

// ParseSource parses src as the benchmark file at path.
func ParseSource(path string, src []byte) (*File, error) {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	f := &File{
		Path:     path,
		Src:      src,
		Package:  af.Name.Name,
		pkgStart: fset.Position(af.Name.Pos()).Offset,
		pkgEnd:   fset.Position(af.Name.End()).Offset,
	}

	for _, spec := range af.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil || p == "C" {
			continue
		}
		imp := Import{Path: p}
		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				continue
			}
			imp.Name = spec.Name.Name
		}
		f.Imports = append(f.Imports, imp)
	}

	markers := markerComments(af)
	index := 0
	for _, decl := range af.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil {
			continue
		}
		name := fd.Name.Name
		if name == "main" {
			return nil, fmt.Errorf("%s: file declares func main", fset.Position(fd.Pos()))
		}
		if !isBenchmark(fd) {
			if name != "_" {
				f.Helpers = append(f.Helpers, name)
			}
			continue
		}

		fn := &Func{
			Name: name,
			Pos:  fset.Position(fd.Pos()),
		}
		if fd.Type.Results != nil {
			for _, field := range fd.Type.Results.List {
				typ, err := render(fset, field.Type)
				if err != nil {
					return nil, err
				}
				if len(field.Names) == 0 {
					fn.Results = append(fn.Results, Result{Type: typ})
				}
				for _, n := range field.Names {
					r := Result{Name: n.Name, Type: typ}
					if r.Name == "_" {
						r.Name = ""
					}
					fn.Results = append(fn.Results, r)
				}
			}
		}
		if fd.Body != nil {
			for _, m := range markers {
				if fd.Body.Lbrace < m && m < fd.Body.Rbrace {
					fn.HasMarker = true
					break
				}
			}
		}

		if name == BaseName {
			fn.Label = BaseName
			f.Base = fn
			continue
		}
		index++
		fn.Index = index
		fn.Label = fmt.Sprintf("%d %s", index, name)
		f.Funcs = append(f.Funcs, fn)
	}

	if len(f.Funcs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoBenchmarks)
	}
	return f, nil
}

func isBenchmark(fd *ast.FuncDecl) bool {
	name := fd.Name.Name
	switch {
	case name == "init", strings.HasPrefix(name, "_"):
		return false
	case fd.Type.TypeParams.NumFields() > 0:
		return false
	case fd.Type.Params.NumFields() > 0:
		return false
	case fd.Body == nil:
		// Assembly-backed declaration.
		return false
	}
	return true
}

// WithPackage returns Src with the package clause renamed to pkg.
// Only the package name changes, so line numbers stay the same.
func (f *File) WithPackage(pkg string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(f.Src) + len(pkg))
	buf.Write(f.Src[:f.pkgStart])
	buf.WriteString(pkg)
	buf.Write(f.Src[f.pkgEnd:])
	return buf.Bytes()
}

func markerComments(af *ast.File) []token.Pos {
	var out []token.Pos
	for _, cg := range af.Comments {
		for _, c := range cg.List {
			if strings.TrimSpace(c.Text) == Marker {
				out = append(out, c.Pos())
			}
		}
	}
	return out
}

func render(fset *token.FileSet, n ast.Node) (string, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
