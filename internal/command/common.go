// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/tennisbet/internal/attrs"
	"github.com/staranto/tennisbet/internal/cache"
	"github.com/staranto/tennisbet/internal/cacheutil"
	"github.com/staranto/tennisbet/internal/collect"
	"github.com/staranto/tennisbet/internal/meta"
	"github.com/staranto/tennisbet/internal/odds"
	"github.com/staranto/tennisbet/internal/output"
	"github.com/staranto/tennisbet/internal/scrape"
	"github.com/staranto/tennisbet/internal/store"

	// Backends register themselves with store.Open.
	_ "github.com/staranto/tennisbet/internal/store/s3"
	_ "github.com/staranto/tennisbet/internal/store/sqlite"
)

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr tennisbet <subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "tennisbet", subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// BuildAttrs constructs an AttrList from the default columns and optional
// extras from --attrs, then applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (attrs.AttrList, error) {
	al := attrs.Defaults(defaults)
	if err := al.Set(cmd.String("attrs")); err != nil {
		return nil, fmt.Errorf("--attrs: %w", err)
	}
	al.SetGlobalTransformSpec()
	return al, nil
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// ResolveDSN picks the store for cmd: --db (or its env and config sources),
// then TENNISBET_DB, then the default database in the cache directory.
func ResolveDSN(cmd *cli.Command, m meta.Meta) (string, error) {
	dsn := cacheutil.ResolveDSN(cmd.String("db"), m.Env.DB)
	if dsn == "" {
		return "", store.ErrStoreNotAvailable
	}
	return dsn, nil
}

// Sources builds the live data sources from the environment. Tests replace
// it with fakes.
var Sources = func(m meta.Meta) (collect.OddsSource, collect.PageSource) {
	oddsClient := odds.NewClient(m.Env.OddsURL, m.Env.OddsToken,
		odds.WithRegions(m.Env.OddsRegions...))
	scraper := scrape.New(
		scrape.WithATPURL(m.Env.ATPURL),
		scrape.WithLivescoreURL(m.Env.LivescoreURL),
	)
	return oddsClient, scraper
}

// NewCollector wires the cache manager for cmd's store and policy to the data
// sources.
func NewCollector(cmd *cli.Command, m meta.Meta) (*collect.Collector, error) {
	dsn, err := ResolveDSN(cmd, m)
	if err != nil {
		return nil, err
	}
	log.Debugf("store: %s", dsn)

	var p cache.Policy
	if s := cmd.String("policy"); s != "" {
		if p, err = cache.ParsePolicy(s); err != nil {
			return nil, err
		}
	}

	mgr := cache.NewManagerForDSN(dsn, cache.WithDisabled(!m.Env.Cache))
	o, pages := Sources(m)

	// Each command reads a single table family, so the one --policy applies to
	// whichever it is.
	return collect.New(mgr, o, pages, collect.Policies{
		Odds:    p,
		Players: p,
		Matches: p,
	}), nil
}

// QueryCommandBuilder constructs a cli.Command for the query subcommands
// (odds, players, matches, tables) using a consistent pattern.
type QueryCommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (qcb *QueryCommandBuilder) Build() *cli.Command {
	return &cli.Command{
		Name:      qcb.Name,
		Usage:     qcb.Usage,
		UsageText: qcb.UsageText,
		Metadata: map[string]any{
			"meta": qcb.Meta,
		},
		Flags: append(qcb.Flags, NewGlobalFlags(qcb.Name, qcb.Meta.Config.Source)...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, GlobalFlagsValidator(ctx, c)
		},
		Action: qcb.Action,
	}
}

// QueryActionRunner encapsulates the common query action: short-circuit
// checks, attrs, fetching through the cache and emitting the rows.
type QueryActionRunner struct {
	CommandName  string
	DefaultAttrs []string
	FetchFn      func(context.Context, *cli.Command, *collect.Collector) (store.Rows, error)
}

// Run executes the query action with the provided context and command.
func (qar *QueryActionRunner) Run(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, qar.CommandName) {
		return nil
	}

	al, err := BuildAttrs(cmd, qar.DefaultAttrs...)
	if err != nil {
		return err
	}
	log.Debugf("attrs: %v", al.String())

	c, err := NewCollector(cmd, m)
	if err != nil {
		return err
	}

	rows, err := qar.FetchFn(ctx, cmd, c)
	if err != nil {
		return err
	}

	return output.SliceDiceSpit(rows, al, output.OptionsFromCommand(cmd), cmd.Root().Writer)
}
