// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/tennisbet/internal/collect"
	"github.com/staranto/tennisbet/internal/config"
	"github.com/staranto/tennisbet/internal/meta"
	"github.com/staranto/tennisbet/internal/odds"
	"github.com/staranto/tennisbet/internal/scrape"
	"github.com/staranto/tennisbet/internal/store"
)

type fakeSources struct {
	oddsCalls   int
	playerCalls int
	matchDates  []time.Time
	oddsErr     error
}

func (f *fakeSources) TennisOdds(context.Context) ([]odds.Quote, error) {
	f.oddsCalls++
	if f.oddsErr != nil {
		return nil, f.oddsErr
	}
	return []odds.Quote{
		{Tournament: "ATP Doha", CommenceTime: "2025-03-05T14:30:00Z",
			Player1: "Carlos Alcaraz", Odds1: 1.45, Player2: "Andrey Rublev", Odds2: 2.75, Bookmaker: "Unibet"},
		{Tournament: "ATP Doha", CommenceTime: "2025-03-05T14:30:00Z",
			Player1: "Carlos Alcaraz", Odds1: 1.5, Player2: "Andrey Rublev", Odds2: 2.6, Bookmaker: "Winamax"},
	}, nil
}

func (f *fakeSources) PlayerURLs(context.Context) ([]scrape.Player, error) {
	f.playerCalls++
	return []scrape.Player{{Name: "Carlos Alcaraz", URL: "https://www.atptour.com/en/players/carlos-alcaraz/a0e2/overview"}}, nil
}

func (f *fakeSources) MatchURLs(_ context.Context, date time.Time) ([]scrape.Match, error) {
	f.matchDates = append(f.matchDates, date)
	return []scrape.Match{{
		Date: date.Format(dateLayout), Tournament: "qatar-open-doha",
		Players: "Carlos Alcaraz vs Andrey Rublev", URL: "https://www.livescore.com/en/tennis/atp-doha/x-vs-y/1/",
	}}, nil
}

// setup isolates config and environment and swaps the live sources for src.
// It returns the sqlite path the commands write to.
func setup(t *testing.T, src *fakeSources, cfgYAML string) string {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tennisbet.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))
	t.Setenv(config.EnvConfigFile, cfgPath)
	prev := config.Config
	config.Config = config.Type{}
	_, err := config.Load()
	require.NoError(t, err)

	db := filepath.Join(dir, "tennisbet.db")
	t.Setenv("TENNISBET_DB", db)
	t.Setenv("TENNISBET_CACHE", "")

	prevSources := Sources
	Sources = func(meta.Meta) (collect.OddsSource, collect.PageSource) { return src, src }

	t.Cleanup(func() {
		Sources = prevSources
		config.Config = prev
	})
	return db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	args = append([]string{"tennisbet"}, args...)
	app, err := InitApp(context.Background(), args)
	require.NoError(t, err)

	var buf bytes.Buffer
	app.Writer = &buf
	app.ErrWriter = &buf
	err = app.Run(context.Background(), args)
	return buf.String(), err
}

func TestOddsCommandCaches(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "")

	out, err := run(t, "odds", "-o", "json", "-a", "odds_1", "--sort=-odds_1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.oddsCalls)
	assert.Contains(t, out, `"bookmaker":"Winamax"`)
	assert.Less(t, bytes.Index([]byte(out), []byte("Winamax")), bytes.Index([]byte(out), []byte("Unibet")))

	_, err = run(t, "odds", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 1, src.oddsCalls, "second run is a cache hit")

	_, err = run(t, "odds", "-o", "json", "--force")
	require.NoError(t, err)
	assert.Equal(t, 2, src.oddsCalls)
}

func TestCacheDisabledRecomputes(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "")
	t.Setenv("TENNISBET_CACHE", "false")

	for range 2 {
		_, err := run(t, "players", "-o", "json")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, src.playerCalls)
}

func TestProducerErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSources{oddsErr: boom}
	setup(t, src, "")

	_, err := run(t, "odds")
	assert.ErrorIs(t, err, boom)
}

func TestPlayersCommandYAML(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "")

	out, err := run(t, "players", "-o", "yaml", "-a", "!url,name::u")
	require.NoError(t, err)
	assert.Equal(t, "- name: CARLOS ALCARAZ\n", out)
}

func TestOutputFromConfig(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "players:\n  output: yaml\n")

	out, err := run(t, "players", "-a", "!url")
	require.NoError(t, err)
	assert.Equal(t, "- name: Carlos Alcaraz\n", out)
}

func TestMatchesCommandDate(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "")

	out, err := run(t, "matches", "--date", "2025-03-04", "-o", "json", "-f", "players@rublev")
	require.NoError(t, err)
	require.Len(t, src.matchDates, 1)
	assert.Equal(t, "2025-03-04", src.matchDates[0].Format(dateLayout))
	assert.Contains(t, out, "qatar-open-doha")

	out, err = run(t, "tables", "-o", "json", "-a", "!age")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"matches_2025_03_04"`)
	assert.Contains(t, out, `"rows":1`)
}

func TestTablesCommandListsEveryFill(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "")

	_, err := run(t, "odds", "-o", "json")
	require.NoError(t, err)
	_, err = run(t, "players", "-o", "json")
	require.NoError(t, err)

	out, err := run(t, "tables", "-o", "json", "-s", "name")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"odds"`)
	assert.Contains(t, out, `"name":"players"`)
	assert.Contains(t, out, `"rows":2`)
}

func TestFlagValidation(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "")

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad output", args: []string{"odds", "-o", "xml"}},
		{name: "bad policy", args: []string{"odds", "--policy", "sometimes"}},
		{name: "negative policy", args: []string{"odds", "--policy=-1h"}},
		{name: "bad date", args: []string{"matches", "--date", "04/03/2025"}},
		{name: "jammed flag", args: []string{"odds", "--filter", "--sort"}},
		{name: "empty attr", args: []string{"odds", "-a", "name,,url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
	assert.Zero(t, src.oddsCalls)
}

func TestPolicyFlag(t *testing.T) {
	src := &fakeSources{}
	setup(t, src, "cache:\n  policy:\n    players: 1ns\n")

	_, err := run(t, "players", "-o", "json")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = run(t, "players", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 2, src.playerCalls, "a 1ns window from config is always stale")

	_, err = run(t, "players", "-o", "json", "--policy", "weekly")
	require.NoError(t, err)
	assert.Equal(t, 2, src.playerCalls, "the flag overrides the config")
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 4, 18, 45, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "2025-03-04"},
		{in: "today", want: "2025-03-04"},
		{in: "Yesterday", want: "2025-03-03"},
		{in: "tomorrow", want: "2025-03-05"},
		{in: "2024-12-31", want: "2024-12-31"},
		{in: "2025-02-30", wantErr: true},
		{in: "next week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(dateLayout))
			assert.Zero(t, got.Hour())
		})
	}
}

func TestCompletion(t *testing.T) {
	setup(t, &fakeSources{}, "")

	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "complete -F _tennisbet tennisbet")

	out, err = run(t, "completion", "zsh")
	require.NoError(t, err)
	assert.Contains(t, out, "#compdef tennisbet")
}

func TestVersion(t *testing.T) {
	setup(t, &fakeSources{}, "")

	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, meta.Version+"\n", out)
}

func TestTableRows(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	rows := tableRows([]store.TableInfo{
		{Name: "odds", Rows: 12, CreatedAt: "2025-03-04T10:00:00Z"},
		{Name: "players", Rows: 0, CreatedAt: ""},
	}, now)

	require.Len(t, rows, 2)
	assert.Equal(t, int64(12), rows[0]["rows"])
	assert.Equal(t, "2 hours ago", rows[0]["age"])
	assert.Nil(t, rows[1]["age"])
}
