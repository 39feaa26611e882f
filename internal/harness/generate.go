// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package harness generates, builds and drives benchmark harness
// programs.
//
// A harness is a main package made of the user's benchmark file and a
// generated file of timing wrappers. The built binary reads requests
// from stdin and answers each with a single line on file descriptor 3:
//
//	version           goversion: <version> <goos>/<goarch>
//	run <name> <n> <gc>
//	                  Benchmark<name> <n> <x> ns/op <t> total-ns
//	result <name>     result: <quoted values>
//	quit
//
// Failures are answered with "panic: <quoted message>" or
// "error: <quoted message>".
package harness

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/aclements/goperf/internal/source"
)

// File names within the harness package.
const (
	MainFile    = "bench.go"
	HarnessFile = "perf_harness.go"
)

// EmptyName is the harness name of the empty loop used to measure
// loop overhead. Names beginning with "_" are never benchmarks.
const EmptyName = "_empty"

const loopLabel = "perfLoop"

// ReplyFD is the file descriptor the harness answers requests on.
const ReplyFD = 3

// Program is a generated harness.
type Program struct {
	Source *source.File

	// Main is the user's file with its package renamed to main.
	Main []byte

	// Harness is the generated wrapper file.
	Harness []byte

	wrappers map[string]string
}

// Wrapper returns the generated timing function for the named
// benchmark.
func (p *Program) Wrapper(name string) (string, bool) {
	w, ok := p.wrappers[name]
	return w, ok
}

// WrapperSymbol returns the linker symbol of the timing function for
// the named benchmark. The benchmark itself is usually inlined into
// it.
func WrapperSymbol(name string) string {
	return "main." + wrapperFunc(name)
}

func wrapperFunc(name string) string {
	return "perfBench_" + name
}

type wrapper struct {
	Name    string
	Func    string
	Init    string
	Body    string
	Label   string
	Labeled bool
	Locals  []source.Result
	Sinks   []source.Result
	Vars    string // comma-separated result variables for result calls
}

type importSpec struct {
	Name, Path string
}

// harnessImports are the packages used by the generated code. They
// are renamed so they cannot collide with the user's identifiers.
var harnessImports = []importSpec{
	{"perfbufio", "bufio"},
	{"perffmt", "fmt"},
	{"perfos", "os"},
	{"perfruntime", "runtime"},
	{"perfdebug", "runtime/debug"},
	{"perfstrconv", "strconv"},
	{"perfstrings", "strings"},
	{"perftime", "time"},
}

// Generate builds the harness program for f.
func Generate(f *source.File) (*Program, error) {
	var ws []*wrapper
	funcs := f.Funcs
	if f.Base != nil {
		funcs = append([]*source.Func{f.Base}, funcs...)
	}
	for _, fn := range funcs {
		w, err := newWrapper(f, fn)
		if err != nil {
			return nil, err
		}
		ws = append(ws, w)
	}

	imports := append([]importSpec(nil), harnessImports...)
	for _, imp := range f.Imports {
		imports = append(imports, importSpec{imp.Name, imp.Path})
	}

	var buf bytes.Buffer
	if err := harnessTmpl.Execute(&buf, struct {
		Imports []importSpec
		Funcs   []*wrapper
		Empty   string
		ReplyFD int
	}{imports, ws, EmptyName, ReplyFD}); err != nil {
		return nil, err
	}

	src, err := finish(buf.Bytes(), f.Imports)
	if err != nil {
		return nil, err
	}

	p := &Program{
		Source:   f,
		Main:     f.WithPackage("main"),
		Harness:  src,
		wrappers: make(map[string]string),
	}
	if err := p.checkReserved(); err != nil {
		return nil, err
	}
	if err := p.indexWrappers(ws); err != nil {
		return nil, err
	}
	return p, nil
}

func newWrapper(f *source.File, fn *source.Func) (*wrapper, error) {
	w := &wrapper{
		Name:  fn.Name,
		Func:  wrapperFunc(fn.Name),
		Label: loopLabel,
	}
	sinks := make([]string, len(fn.Results))
	vars := make([]string, len(fn.Results))
	for i, r := range fn.Results {
		sinks[i] = fmt.Sprintf("perfSink_%s_%d", fn.Name, i)
		vars[i] = fmt.Sprintf("perfR%d", i)
		w.Sinks = append(w.Sinks, source.Result{Name: sinks[i], Type: r.Type})
		if r.Name != "" {
			w.Locals = append(w.Locals, r)
		}
	}
	w.Vars = strings.Join(vars, ", ")

	loop, err := f.Loop(fn, sinks, loopLabel)
	if err != nil {
		return nil, err
	}
	w.Init, w.Body, w.Labeled = loop.Init, loop.Body, loop.Labeled
	return w, nil
}

// finish drops the user's imports that the wrappers do not reference
// and formats the result.
func finish(src []byte, imports []source.Import) ([]byte, error) {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, HarnessFile, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("generated harness does not parse: %w\n%s", err, src)
	}
	used := selectorRoots(af)
	for _, imp := range imports {
		if !used[localName(imp)] {
			astutil.DeleteNamedImport(fset, af, imp.Name, imp.Path)
		}
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, af); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// selectorRoots returns the identifiers used as X in X.Sel.
func selectorRoots(af *ast.File) map[string]bool {
	roots := make(map[string]bool)
	ast.Inspect(af, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok {
				roots[id.Name] = true
			}
		}
		return true
	})
	return roots
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// localName guesses the name an import is referred to by.
func localName(imp source.Import) string {
	if imp.Name != "" {
		return imp.Name
	}
	p := imp.Path
	base := path.Base(p)
	if majorVersion.MatchString(base) && path.Dir(p) != "." {
		base = path.Base(path.Dir(p))
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.TrimPrefix(base, "go-")
}

// checkReserved rejects user files declaring identifiers the
// generated code uses.
func (p *Program) checkReserved() error {
	fset := token.NewFileSet()
	gen, err := parser.ParseFile(fset, HarnessFile, p.Harness, 0)
	if err != nil {
		return err
	}
	reserved := make(map[string]bool)
	for _, imp := range harnessImports {
		reserved[imp.Name] = true
	}
	for name := range gen.Scope.Objects {
		reserved[name] = true
	}
	user, err := parser.ParseFile(fset, p.Source.Path, p.Source.Src, 0)
	if err != nil {
		return err
	}
	for name := range user.Scope.Objects {
		if reserved[name] {
			return fmt.Errorf("%s: identifier %s is reserved by the harness", p.Source.Path, name)
		}
	}
	for _, imp := range p.Source.Imports {
		if reserved[localName(imp)] {
			return fmt.Errorf("%s: import name %s is reserved by the harness", p.Source.Path, localName(imp))
		}
	}
	return nil
}

func (p *Program) indexWrappers(ws []*wrapper) error {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, HarnessFile, p.Harness, 0)
	if err != nil {
		return err
	}
	funcs := make(map[string]string, len(ws))
	for _, w := range ws {
		funcs[w.Func] = w.Name
	}
	for _, decl := range af.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if name, ok := funcs[fd.Name.Name]; ok {
			start := fset.Position(fd.Pos()).Offset
			end := fset.Position(fd.End()).Offset
			p.wrappers[name] = string(p.Harness[start:end])
		}
	}
	return nil
}

var harnessTmpl = template.Must(template.New("harness").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`// Code generated by goperf. DO NOT EDIT.

package main

import (
{{- range .Imports}}
	{{.Name}} {{quote .Path}}
{{- end}}
)

var (
{{- range .Funcs}}{{range .Sinks}}
	{{.Name}} {{.Type}}
{{- end}}{{end}}
)

{{range .Funcs}}
func {{.Func}}(perfN int) perftime.Duration {
{{- range .Locals}}
	var {{.Name}} {{.Type}}
	_ = {{.Name}}
{{- end}}
{{.Init}}
	perfT0 := perftime.Now()
{{- if .Labeled}}
{{.Label}}:
{{- end}}
	for perfI := 0; perfI < perfN; perfI++ {
{{.Body}}
	}
	return perftime.Since(perfT0)
}
{{end}}

func perfBenchEmpty(perfN int) perftime.Duration {
	perfT0 := perftime.Now()
	for perfI := 0; perfI < perfN; perfI++ {
	}
	return perftime.Since(perfT0)
}

var perfBenchmarks = map[string]func(int) perftime.Duration{
	{{quote .Empty}}: perfBenchEmpty,
{{- range .Funcs}}
	{{quote .Name}}: {{.Func}},
{{- end}}
}

var perfFuncs = map[string]func() []any{
{{- range .Funcs}}
	{{quote .Name}}: func() []any {
	{{- if .Sinks}}
		{{.Vars}} := {{.Name}}()
		return []any{ {{- .Vars -}} }
	{{- else}}
		{{.Name}}()
		return nil
	{{- end}}
	},
{{- end}}
}

func main() {
	// Replies go to fd 3. Whatever the benchmark file prints,
	// including from package initialization, stays on stdout.
	perfOut := perfbufio.NewWriter(perfos.NewFile({{.ReplyFD}}, "perfreply"))

	perfIn := perfbufio.NewScanner(perfos.Stdin)
	for perfIn.Scan() {
		if !perfServe(perfOut, perfIn.Text()) {
			break
		}
		perfOut.Flush()
	}
	perfOut.Flush()
}

func perfServe(w *perfbufio.Writer, line string) bool {
	f := perfstrings.Fields(line)
	if len(f) == 0 {
		perfReply(w, "error", "empty request")
		return true
	}
	switch f[0] {
	case "version":
		perffmt.Fprintf(w, "goversion: %s %s/%s\n", perfruntime.Version(), perfruntime.GOOS, perfruntime.GOARCH)
	case "run":
		if len(f) != 4 {
			perfReply(w, "error", "usage: run <name> <n> <gc>")
			return true
		}
		bench, ok := perfBenchmarks[f[1]]
		if !ok {
			perfReply(w, "error", "unknown benchmark "+f[1])
			return true
		}
		n, err := perfstrconv.Atoi(f[2])
		if err != nil || n <= 0 {
			perfReply(w, "error", "bad iteration count "+f[2])
			return true
		}
		d, msg := perfRun(bench, n, f[3] == "1")
		if msg != "" {
			perfReply(w, "panic", msg)
			return true
		}
		perffmt.Fprintf(w, "Benchmark%s\t%d\t%.4f ns/op\t%d total-ns\n", f[1], n, float64(d)/float64(n), int64(d))
	case "result":
		if len(f) != 2 {
			perfReply(w, "error", "usage: result <name>")
			return true
		}
		fn, ok := perfFuncs[f[1]]
		if !ok {
			perfReply(w, "error", "unknown benchmark "+f[1])
			return true
		}
		vals, msg := perfCall(fn)
		if msg != "" {
			perfReply(w, "panic", msg)
			return true
		}
		if vals == nil {
			perfReply(w, "result", "(no result)")
			return true
		}
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = perffmt.Sprintf("%#v", v)
		}
		perfReply(w, "result", perfstrings.Join(strs, ", "))
	case "quit":
		return false
	default:
		perfReply(w, "error", "unknown request "+f[0])
	}
	return true
}

func perfReply(w *perfbufio.Writer, kind, msg string) {
	perffmt.Fprintf(w, "%s: %s\n", kind, perfstrconv.Quote(msg))
}

func perfRun(bench func(int) perftime.Duration, n int, gc bool) (d perftime.Duration, msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = perfPanic(r)
		}
	}()
	if !gc {
		perfruntime.GC()
		defer perfdebug.SetGCPercent(perfdebug.SetGCPercent(-1))
	}
	return bench(n), ""
}

func perfCall(fn func() []any) (vals []any, msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = perfPanic(r)
		}
	}()
	return fn(), ""
}

func perfPanic(r any) string {
	return perffmt.Sprintf("%T: %v", r, r)
}
`))
