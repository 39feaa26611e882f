// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// Loop is the body of a benchmark split for timing.
type Loop struct {
	// Init is the source of the statements run once before timing.
	Init string

	// Body is the source of the timed loop body. Its return
	// statements assign their values to the sinks and continue
	// the loop labeled Label.
	Body string

	// Labeled reports whether Body refers to Label.
	Labeled bool
}

// Loop splits the body of fn and rewrites its returns so that the
// body can be pasted into a loop labeled label. sinks must name one
// variable per result of fn.
//
// Loop reparses the file, so the returned source is independent of
// any earlier call.
func (f *File) Loop(fn *Func, sinks []string, label string) (*Loop, error) {
	if len(sinks) != len(fn.Results) {
		return nil, fmt.Errorf("%s: %d sinks for %d results", fn.Name, len(sinks), len(fn.Results))
	}

	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, f.Path, f.Src, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var fd *ast.FuncDecl
	for _, decl := range af.Decls {
		if d, ok := decl.(*ast.FuncDecl); ok && d.Recv == nil && d.Name.Name == fn.Name {
			fd = d
			break
		}
	}
	if fd == nil || fd.Body == nil {
		return nil, fmt.Errorf("function %s not found", fn.Name)
	}

	var init, body []ast.Stmt
	if fn.HasMarker {
		if init, body, err = split(fset, af, fd.Body); err != nil {
			return nil, err
		}
		dropMarkerDoc(body)
	} else {
		body = fd.Body.List
	}

	// Bare returns in functions with named results return the
	// current values of those results.
	var named []ast.Expr
	for _, r := range fn.Results {
		if r.Name == "" {
			named = nil
			break
		}
		named = append(named, ast.NewIdent(r.Name))
	}

	out := &Loop{}
	blk := &ast.BlockStmt{List: body}
	astutil.Apply(blk, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.FuncLit:
			// Returns in closures belong to the closure.
			return false
		case *ast.ReturnStmt:
			stmts := rewriteReturn(n, sinks, named, label)
			if c.Index() >= 0 {
				for _, s := range stmts[:len(stmts)-1] {
					c.InsertBefore(s)
				}
				c.Replace(stmts[len(stmts)-1])
			} else {
				c.Replace(&ast.BlockStmt{List: stmts})
			}
			out.Labeled = true
			return false
		}
		return true
	}, nil)

	if out.Init, err = renderStmts(fset, init); err != nil {
		return nil, err
	}
	if out.Body, err = renderStmts(fset, blk.List); err != nil {
		return nil, err
	}
	return out, nil
}

// split divides body at the marker comment.
func split(fset *token.FileSet, af *ast.File, body *ast.BlockStmt) (init, loop []ast.Stmt, err error) {
	marker := token.NoPos
	for _, m := range markerComments(af) {
		if body.Lbrace < m && m < body.Rbrace {
			marker = m
			break
		}
	}
	if marker == token.NoPos {
		return nil, body.List, nil
	}
	for _, s := range body.List {
		switch {
		case s.End() <= marker:
			init = append(init, s)
		case s.Pos() >= marker:
			loop = append(loop, s)
		default:
			return nil, nil, fmt.Errorf("%s: %q must not be inside a nested statement", fset.Position(marker), Marker)
		}
	}
	return init, loop, nil
}

// dropMarkerDoc removes the marker from the doc comments of the
// declarations in stmts. The parser attaches a marker directly above
// a declaration to it.
func dropMarkerDoc(stmts []ast.Stmt) {
	for _, s := range stmts {
		ds, ok := s.(*ast.DeclStmt)
		if !ok {
			continue
		}
		gd, ok := ds.Decl.(*ast.GenDecl)
		if !ok || gd.Doc == nil {
			continue
		}
		var keep []*ast.Comment
		for _, c := range gd.Doc.List {
			if strings.TrimSpace(c.Text) != Marker {
				keep = append(keep, c)
			}
		}
		if len(keep) == 0 {
			gd.Doc = nil
		} else {
			gd.Doc.List = keep
		}
	}
}

func rewriteReturn(ret *ast.ReturnStmt, sinks []string, named []ast.Expr, label string) []ast.Stmt {
	var stmts []ast.Stmt
	rhs := ret.Results
	if len(rhs) == 0 {
		rhs = named
	}
	if len(rhs) > 0 && len(sinks) > 0 {
		lhs := make([]ast.Expr, len(sinks))
		for i, s := range sinks {
			lhs[i] = ast.NewIdent(s)
		}
		stmts = append(stmts, &ast.AssignStmt{Lhs: lhs, Tok: token.ASSIGN, Rhs: rhs})
	}
	stmts = append(stmts, &ast.BranchStmt{Tok: token.CONTINUE, Label: ast.NewIdent(label)})
	return stmts
}

func renderStmts(fset *token.FileSet, stmts []ast.Stmt) (string, error) {
	var sb strings.Builder
	for _, s := range stmts {
		text, err := render(fset, s)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
