// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tennisbet/internal/collect"
	"github.com/staranto/tennisbet/internal/meta"
	"github.com/staranto/tennisbet/internal/store"
)

// OddsCommandAction lists head-to-head bookmaker odds for every open ATP
// event, served from the odds table while it is fresh.
func OddsCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner{
		CommandName: "odds",
		DefaultAttrs: []string{
			"tournament", "commence_time", "player_1", "odds_1",
			"player_2", "odds_2", "bookmaker",
		},
		FetchFn: func(ctx context.Context, cmd *cli.Command, c *collect.Collector) (store.Rows, error) {
			return c.Odds(ctx, cmd.Bool("force"))
		},
	}
	return runner.Run(ctx, cmd)
}

// OddsCommandBuilder constructs the cli.Command definition for "odds".
func OddsCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "odds",
		Usage:     "ATP match odds",
		UsageText: `tennisbet odds [options]`,
		Action:    OddsCommandAction,
		Meta:      meta,
	}).Build()
}
