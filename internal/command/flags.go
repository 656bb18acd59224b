// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os/exec"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

var tldrFlag *cli.BoolFlag = &cli.BoolFlag{
	Name:        "tldr",
	Usage:       "show tldr page",
	Hidden:      !pathHas("tldr"),
	HideDefault: true,
}

// NewGlobalFlags returns the flags shared by every query command. ns is the
// command name and cfgPath the config file; flags that allow it fall back to
// "<ns>.<flag>" and then "<flag>" in that file.
func NewGlobalFlags(ns string, cfgPath string) (flags []cli.Flag) {
	src := altsrc.StringSourcer(cfgPath)

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of attributes to include in results",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output (default: on for a terminal)",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".color", src),
				yaml.YAML("color", src),
			),
			Value: false,
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "table store DSN: a sqlite path, sqlite://path or s3://bucket/prefix",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TENNISBET_DB"),
				yaml.YAML("db", src),
			),
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "log at debug level",
			HideDefault: true,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"F"},
			Usage:       "recompute even if the cached table is fresh",
			HideDefault: true,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".output", src),
				yaml.YAML("output", src),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:  "policy",
			Usage: "staleness policy: weekly or a duration such as 30m",
			Sources: cli.NewValueSourceChain(
				yaml.YAML("cache.policy."+ns, src),
			),
			Validator: func(value string) error {
				return FlagValidators(value, PolicyValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".sort", src),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".titles", src),
				yaml.YAML("titles", src),
			),
			Value: false,
		},
		tldrFlag,
	}

	return
}

// pathHas reports whether target is on the PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
