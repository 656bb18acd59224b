// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tennisbet/internal/collect"
	"github.com/staranto/tennisbet/internal/meta"
	"github.com/staranto/tennisbet/internal/store"
)

const dateLayout = "2006-01-02"

var nowFunc = time.Now

// parseDate accepts "today", "yesterday", "tomorrow" or YYYY-MM-DD in now's
// location. The result is midnight of that day.
func parseDate(s string, now time.Time) (time.Time, error) {
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD, today, yesterday or tomorrow", s)
	}
	return t, nil
}

// MatchesCommandAction lists the ATP match pages of one day. Each day is its
// own table, so past days stay cached alongside today's.
func MatchesCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner{
		CommandName:  "matches",
		DefaultAttrs: []string{"date", "tournament", "players", "url"},
		FetchFn: func(ctx context.Context, cmd *cli.Command, c *collect.Collector) (store.Rows, error) {
			date, err := parseDate(cmd.String("date"), nowFunc())
			if err != nil {
				return nil, err
			}
			return c.Matches(ctx, date, cmd.Bool("force"))
		},
	}
	return runner.Run(ctx, cmd)
}

// MatchesCommandBuilder constructs the cli.Command definition for "matches".
func MatchesCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "matches",
		Usage:     "ATP matches of a day",
		UsageText: `tennisbet matches [--date YYYY-MM-DD] [options]`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "date",
				Aliases: []string{"d"},
				Usage:   "day to list: YYYY-MM-DD, today, yesterday or tomorrow",
				Value:   "today",
				Validator: func(value string) error {
					return FlagValidators(value, DateValidator)
				},
			},
		},
		Action: MatchesCommandAction,
		Meta:   meta,
	}).Build()
}
