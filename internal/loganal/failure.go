// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loganal extracts failures from Go toolchain and runtime
// output.
package loganal

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Failure records a failure extracted from a log.
type Failure struct {
	// File, Line and Col locate a compiler failure. Line and Col
	// are 0 if unknown.
	File      string
	Line, Col int

	// Message is the failure message.
	Message string

	// Where is the fully qualified function in which a runtime
	// failure happened, if known.
	Where string
}

func (f Failure) String() string {
	s := ""
	if f.File != "" {
		s = f.File
		if f.Line > 0 {
			s += ":" + strconv.Itoa(f.Line)
			if f.Col > 0 {
				s += ":" + strconv.Itoa(f.Col)
			}
		}
		s += ": "
	} else if f.Where != "" {
		s = "at " + f.Where + ": "
	}
	return s + f.Message
}

var (
	canonLine = regexp.MustCompile(`\r+\n`)

	// compileError matches a positioned compiler or vet error.
	compileError = regexp.MustCompile(`^(\S+\.go):([0-9]+)(?::([0-9]+))?: (.*)$`)

	// runtimeFailed matches a panic or runtime throw.
	runtimeFailed = regexp.MustCompile(`^(?:panic|fatal error): (.*?)(?: \[recovered\])?$`)

	// tbHeader starts a goroutine traceback.
	tbHeader = regexp.MustCompile(`^goroutine [0-9]+ \[`)

	// tbEntry matches the function line of a traceback entry.
	tbEntry = regexp.MustCompile(`^(\S+)\(.*\)$`)
)

// Extract parses the failures from log m, in order of appearance.
// It recognizes compiler errors and runtime panics or throws. For a
// runtime failure, Where is set from the first non-runtime frame of
// the following traceback.
func Extract(m string) []*Failure {
	m = canonLine.ReplaceAllString(m, "\n")
	lines := strings.Split(m, "\n")

	fs := []*Failure{}
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if sm := compileError.FindStringSubmatch(l); sm != nil {
			line, _ := strconv.Atoi(sm[2])
			col, _ := strconv.Atoi(sm[3])
			fs = append(fs, &Failure{File: sm[1], Line: line, Col: col, Message: sm[4]})
			continue
		}
		if sm := runtimeFailed.FindStringSubmatch(l); sm != nil {
			f := &Failure{Message: sm[1]}
			i = traceback(lines, i+1, f)
			fs = append(fs, f)
		}
	}
	return fs
}

// traceback scans forward from lines[i] for the traceback of a
// runtime failure and returns the index of the last line consumed.
func traceback(lines []string, i int, f *Failure) int {
	start := i
	for ; i < len(lines); i++ {
		if tbHeader.MatchString(lines[i]) {
			break
		}
		if lines[i] != "" && !strings.HasPrefix(lines[i], "[") {
			// Not a traceback.
			return start - 1
		}
	}
	for i++; i < len(lines); i++ {
		l := lines[i]
		if l == "" {
			break
		}
		sm := tbEntry.FindStringSubmatch(l)
		if sm == nil || strings.HasPrefix(sm[1], "runtime.") || sm[1] == "panic" {
			continue
		}
		if f.Where == "" {
			f.Where = sm[1]
		}
	}
	return i
}

// Rewrite replaces the file name from with to in every failure
// located in a file whose base name is from.
func Rewrite(fs []*Failure, from, to string) {
	for _, f := range fs {
		if f.File != "" && filepath.Base(f.File) == from {
			f.File = to
		}
	}
}

// Summary returns the first runtime failure in fs as a single line,
// or "" if there is none.
func Summary(fs []*Failure) string {
	for _, f := range fs {
		if f.File == "" {
			return fmt.Sprint(*f)
		}
	}
	return ""
}
