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

// PlayersCommandAction lists the ranked players' overview pages. The list is
// refreshed once per ISO week unless --policy says otherwise.
func PlayersCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner{
		CommandName:  "players",
		DefaultAttrs: []string{"name", "url"},
		FetchFn: func(ctx context.Context, cmd *cli.Command, c *collect.Collector) (store.Rows, error) {
			return c.Players(ctx, cmd.Bool("force"))
		},
	}
	return runner.Run(ctx, cmd)
}

// PlayersCommandBuilder constructs the cli.Command definition for "players".
func PlayersCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "players",
		Usage:     "ranked ATP players",
		UsageText: `tennisbet players [options]`,
		Action:    PlayersCommandAction,
		Meta:      meta,
	}).Build()
}
