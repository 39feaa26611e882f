// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aclements/goperf/internal/measure"
)

// Options is the resolved configuration of a run.
type Options struct {
	Path string `validate:"required"`

	ShowSource  bool
	ShowAsm     bool
	ShowResults bool
	ShowGo      bool

	Iterations int     `validate:"gte=0"`
	Threshold  float64 `validate:"gte=0"` // seconds
	GC         bool
	KeepLoop   bool
	Count      int    `validate:"gte=1"`
	NoSort     bool
	Format     string `validate:"oneof=text bench"`

	BuildFlags string
	GoCmd      string `validate:"required"`
	Keep       bool
	Verbose    bool
}

func (o *Options) showMode() bool {
	return o.ShowSource || o.ShowAsm || o.ShowResults
}

func (o *Options) measureOptions() measure.Options {
	return measure.Options{
		Iterations: o.Iterations,
		Threshold:  time.Duration(o.Threshold * float64(time.Second)),
		GC:         o.GC,
		KeepLoop:   o.KeepLoop,
		Count:      o.Count,
	}
}

// aliases maps the upper case spellings of the show flags to the
// flags they stand for.
var aliases = map[string]string{
	"S": "show-source",
	"B": "show-asm",
	"R": "show-results",
	"P": "show-go",
}

func addFlags(f *pflag.FlagSet) {
	f.SortFlags = false
	f.BoolP("show-source", "s", false, "display the generated benchmark loop")
	f.BoolP("show-asm", "b", false, "display the disassembled benchmark loop")
	f.BoolP("show-results", "r", false, "display return values")
	f.BoolP("show-go", "p", false, "display the Go version and platform")
	for short, long := range aliases {
		f.BoolP(long+"-"+short, short, false, "")
		f.MarkHidden(long + "-" + short)
	}
	f.IntP("iterations", "n", 0, "number of `N` iterations (0 calibrates)")
	f.Float64P("threshold", "t", 0, "number of `SECONDS` to run a benchmark for (0 means 1)")
	f.BoolP("gc", "g", false, "enable garbage collection during benchmark runs")
	f.BoolP("loop", "l", false, "keep loop overhead in benchmark timings")
	f.IntP("count", "c", 1, "time each benchmark `N` times and keep the fastest")
	f.Bool("no-sort", false, "report in source order instead of fastest first")
	f.String("format", "text", "output `format`: text or bench")
	f.String("buildflags", "", "additional `flags` for go build")
	f.String("go", "go", "go `command` to build with")
	f.Bool("keep", false, "keep the harness build directory")
	f.BoolP("verbose", "v", false, "log build and calibration details")
	f.String("config", "", "read options from `file`")
}

var validate = validator.New()

// loadOptions resolves the options of cmd from its flags, GOPERF_*
// environment variables and the --config file, in that order of
// precedence.
func loadOptions(cmd *cobra.Command, path string) (*Options, error) {
	v := viper.New()
	v.SetEnvPrefix("GOPERF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	alias := func(long string) bool {
		for short, l := range aliases {
			if l == long {
				on, _ := cmd.Flags().GetBool(long + "-" + short)
				return on
			}
		}
		return false
	}
	show := func(long string) bool {
		return v.GetBool(long) || alias(long)
	}

	o := &Options{
		Path:        path,
		ShowSource:  show("show-source"),
		ShowAsm:     show("show-asm"),
		ShowResults: show("show-results"),
		ShowGo:      show("show-go"),
		Iterations:  v.GetInt("iterations"),
		Threshold:   v.GetFloat64("threshold"),
		GC:          v.GetBool("gc"),
		KeepLoop:    v.GetBool("loop"),
		Count:       v.GetInt("count"),
		NoSort:      v.GetBool("no-sort"),
		Format:      v.GetString("format"),
		BuildFlags:  v.GetString("buildflags"),
		GoCmd:       v.GetString("go"),
		Keep:        v.GetBool("keep"),
		Verbose:     v.GetBool("verbose"),
	}
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, &usageError{fmt.Errorf("invalid %s %v (must be %s)", optionName(fe.Field()), fe.Value(), rule(fe))}
		}
		return nil, err
	}
	return o, nil
}

var optionNames = map[string]string{
	"Path":       "PATH",
	"Iterations": "--iterations",
	"Threshold":  "--threshold",
	"Count":      "--count",
	"Format":     "--format",
	"GoCmd":      "--go",
}

func optionName(field string) string {
	if n, ok := optionNames[field]; ok {
		return n
	}
	return field
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return ">= " + fe.Param()
	case "oneof":
		return "one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "required":
		return "non-empty"
	}
	return fe.Tag()
}
