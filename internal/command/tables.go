// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/tennisbet/internal/meta"
	"github.com/staranto/tennisbet/internal/output"
	"github.com/staranto/tennisbet/internal/store"
)

// TablesCommandAction lists the cached tables with their size and age. It
// reads the store directly and never runs a producer.
func TablesCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)

	if ShortCircuitTLDR(ctx, cmd, "tables") {
		return nil
	}

	al, err := BuildAttrs(cmd, "name", "rows", "created_at", "age")
	if err != nil {
		return err
	}

	dsn, err := ResolveDSN(cmd, m)
	if err != nil {
		return err
	}

	ts, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := ts.Close(); err != nil {
			log.WithError(err).Warn("closing store")
		}
	}()

	infos, err := ts.Tables(ctx)
	if err != nil {
		return err
	}

	return output.SliceDiceSpit(tableRows(infos, nowFunc()), al, output.OptionsFromCommand(cmd), cmd.Root().Writer)
}

// tableRows turns listings into rows. A missing or unparsable created_at
// leaves age empty.
func tableRows(infos []store.TableInfo, now time.Time) store.Rows {
	rows := make(store.Rows, 0, len(infos))
	for _, info := range infos {
		row := store.Row{
			"name":       info.Name,
			"rows":       int64(info.Rows),
			"created_at": info.CreatedAt,
			"age":        nil,
		}
		if c, err := time.Parse(time.RFC3339Nano, info.CreatedAt); err == nil {
			row["age"] = humanize.RelTime(c, now, "ago", "from now")
		}
		rows = append(rows, row)
	}
	return rows
}

// TablesCommandBuilder constructs the cli.Command definition for "tables".
func TablesCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "tables",
		Usage:     "list cached tables",
		UsageText: `tennisbet tables [options]`,
		Action:    TablesCommandAction,
		Meta:      meta,
	}).Build()
}
