// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/tennisbet/internal/cacheutil"
	"github.com/staranto/tennisbet/internal/command"
	"github.com/staranto/tennisbet/internal/config"
	mylog "github.com/staranto/tennisbet/internal/log"
	"github.com/staranto/tennisbet/internal/meta"
)

var ctx = context.Background()

var ensureBaseDir = cacheutil.EnsureBaseDir

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(meta.Version)
			return 0
		}
	}

	prepareCacheDir(os.Stderr)

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// prepareCacheDir creates the cache directory the default sqlite store lives
// in. Failure is reported to w and is not fatal.
func prepareCacheDir(w io.Writer) {
	if _, _, err := ensureBaseDir(); err != nil {
		fmt.Fprintln(w, err)
	}
}

// mangleArguments expands an argument preset from the config file. A preset is
// a list of flags stored at "<command>.<set>"; "@set" on the command line
// picks one and "defaults" is used otherwise. Preset flags are inserted right
// after the command so flags given explicitly still win.
func mangleArguments(args []string) []string {
	if len(args) < 2 || strings.HasPrefix(args[1], "-") {
		return args
	}

	// We know the first two args are going to be the executable and command.
	preamble := make([]string, 2)
	copy(preamble, args[:2])

	// Short-circuit for --help/-h. If help is requested, just keep the preamble
	// and add --help flag.
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return append(preamble, "--help")
		}
	}

	set := "defaults"
	rest := make([]string, 0, len(args)-2)
	for _, a := range args[2:] {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			set = a[1:]
			continue
		}
		rest = append(rest, a)
	}

	setArgs, err := config.GetStringSlice(args[1] + "." + set)
	if err != nil && set != "defaults" {
		log.Warnf("argument set %q not found for %s", set, args[1])
	}

	mangled := preamble
	for _, arg := range setArgs {
		mangled = append(mangled, strings.Fields(arg)...)
	}
	mangled = append(mangled, rest...)

	log.Debugf("set=%s, args=%v", set, mangled)
	return mangled
}
