// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"context"
	"time"

	"github.com/staranto/tennisbet/internal/cache"
	"github.com/staranto/tennisbet/internal/odds"
	"github.com/staranto/tennisbet/internal/scrape"
	"github.com/staranto/tennisbet/internal/store"
)

const (
	TablePlayers = "players"
	TableOdds    = "odds"

	matchesPrefix = "matches_"
	matchesLayout = "2006_01_02"
)

// MatchesTable names the table holding the matches of date.
func MatchesTable(date time.Time) string {
	return matchesPrefix + date.Format(matchesLayout)
}

// OddsSource produces bookmaker quotes.
type OddsSource interface {
	TennisOdds(ctx context.Context) ([]odds.Quote, error)
}

// PageSource produces scraped players and matches.
type PageSource interface {
	PlayerURLs(ctx context.Context) ([]scrape.Player, error)
	MatchURLs(ctx context.Context, date time.Time) ([]scrape.Match, error)
}

// Policies holds the staleness policy of each table family.
type Policies struct {
	Odds    cache.Policy
	Players cache.Policy
	Matches cache.Policy
}

// DefaultPolicies refreshes odds hourly, the player list weekly and a day's
// matches hourly.
func DefaultPolicies() Policies {
	return Policies{
		Odds:    cache.Rolling{Window: time.Hour},
		Players: cache.CalendarWeek{},
		Matches: cache.Rolling{Window: time.Hour},
	}
}

// Collector runs each data source through the cache under its table.
type Collector struct {
	cache    *cache.Manager
	odds     OddsSource
	pages    PageSource
	policies Policies
}

// New returns a Collector. Zero fields of policies take their defaults.
func New(m *cache.Manager, o OddsSource, p PageSource, policies Policies) *Collector {
	def := DefaultPolicies()
	if policies.Odds == nil {
		policies.Odds = def.Odds
	}
	if policies.Players == nil {
		policies.Players = def.Players
	}
	if policies.Matches == nil {
		policies.Matches = def.Matches
	}
	return &Collector{cache: m, odds: o, pages: p, policies: policies}
}

func (c *Collector) Odds(ctx context.Context, force bool) (store.Rows, error) {
	return c.cache.Call(ctx, TableOdds,
		cache.Typed(c.odds.TennisOdds, odds.Quote.Row),
		c.policies.Odds, force)
}

func (c *Collector) Players(ctx context.Context, force bool) (store.Rows, error) {
	return c.cache.Call(ctx, TablePlayers,
		cache.Typed(c.pages.PlayerURLs, scrape.Player.Row),
		c.policies.Players, force)
}

// Matches caches each day under its own table.
func (c *Collector) Matches(ctx context.Context, date time.Time, force bool) (store.Rows, error) {
	produce := func(ctx context.Context) ([]scrape.Match, error) {
		return c.pages.MatchURLs(ctx, date)
	}
	return c.cache.Call(ctx, MatchesTable(date),
		cache.Typed(produce, scrape.Match.Row),
		c.policies.Matches, force)
}
