// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT
package command

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tennisbet/internal/config"
	"github.com/staranto/tennisbet/internal/meta"
)

func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	// The arg[1] immediately following the binary (arg[0]) is the tennisbet
	// subcommand and also represents the namespace key to be used when
	// retrieving config values. arg[1] could be -h/--help, so ignore it if it
	// appears to be a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}
	config.SetNamespace(ns)

	env, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}

	m := meta.Meta{
		Args:    args,
		Config:  config.Config,
		Context: ctx,
		Env:     env,
	}

	app := &cli.Command{
		Name:  "tennisbet",
		Usage: "cached ATP rankings, matches and betting odds",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "tennisbet version info",
				HideDefault: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("version") {
				_, err := fmt.Fprintln(c.Writer, meta.Version)
				return err
			}
			return cli.ShowAppHelp(c)
		},
	}

	// Set explicitly so subcommands can write through Root().
	app.Writer, app.ErrWriter = os.Stdout, os.Stderr

	app.Commands = append(app.Commands,
		OddsCommandBuilder(app, m),
		PlayersCommandBuilder(app, m),
		MatchesCommandBuilder(app, m),
		TablesCommandBuilder(app, m),
		CompletionCommandBuilder(app, m),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
