// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package filters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/tennisbet/internal/attrs"
	"github.com/staranto/tennisbet/internal/store"
)

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		delimiter string
		want      []Filter
	}{
		{name: "empty spec", spec: ""},
		{
			name: "exact match",
			spec: "bookmaker=Unibet",
			want: []Filter{{Key: "bookmaker", Operand: "=", Target: "Unibet"}},
		},
		{
			name: "negated prefix",
			spec: "tournament!^ATP Doha",
			want: []Filter{{Key: "tournament", Operand: "^", Target: "ATP Doha", Negate: true}},
		},
		{
			name: "multiple filters",
			spec: "odds_1>1.5,player_1@alcaraz",
			want: []Filter{
				{Key: "odds_1", Operand: ">", Target: "1.5"},
				{Key: "player_1", Operand: "@", Target: "alcaraz"},
			},
		},
		{
			name: "regex target containing an operator",
			spec: "url/overview$",
			want: []Filter{{Key: "url", Operand: "/", Target: "overview$"}},
		},
		{
			name: "invalid filter skipped",
			spec: "bookmaker=Unibet,nonsense,=orphan",
			want: []Filter{{Key: "bookmaker", Operand: "=", Target: "Unibet"}},
		},
		{
			name:      "custom delimiter",
			spec:      "players@vs|date=2025-03-04",
			delimiter: "|",
			want: []Filter{
				{Key: "players", Operand: "@", Target: "vs"},
				{Key: "date", Operand: "=", Target: "2025-03-04"},
			},
		},
		{
			name: "empty target",
			spec: "name=",
			want: []Filter{{Key: "name", Operand: "=", Target: ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.delimiter != "" {
				t.Setenv(EnvDelim, tt.delimiter)
			}
			got := BuildFilters(tt.spec)
			assert.Len(t, got, len(tt.want))
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCheckStringOperand(t *testing.T) {
	tests := []struct {
		value  string
		filter Filter
		want   bool
	}{
		{"Unibet", Filter{Operand: "=", Target: "Unibet"}, true},
		{"Unibet", Filter{Operand: "=", Target: "Betclic"}, false},
		{"Unibet", Filter{Operand: "=", Target: "Unibet", Negate: true}, false},
		{"Unibet", Filter{Operand: "~", Target: "UNIBET"}, true},
		{"ATP Doha", Filter{Operand: "^", Target: "ATP"}, true},
		{"ATP Doha", Filter{Operand: "^", Target: "ATP", Negate: true}, false},
		{"2025-03-05", Filter{Operand: ">", Target: "2025-03-04"}, true},
		{"2025-03-05", Filter{Operand: "<", Target: "2025-03-04"}, false},
		{"Carlos Alcaraz", Filter{Operand: "@", Target: "alcaraz"}, true},
		{"Carlos Alcaraz", Filter{Operand: "@", Target: "sinner", Negate: true}, true},
		{"carlos-alcaraz", Filter{Operand: "/", Target: `^carlos-`}, true},
		{"carlos-alcaraz", Filter{Operand: "/", Target: `(`}, false},
		{"x", Filter{Operand: "?", Target: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.value+tt.filter.Operand+tt.filter.Target, func(t *testing.T) {
			assert.Equal(t, tt.want, checkStringOperand(tt.value, tt.filter))
		})
	}
}

func TestCheckNumericOperand(t *testing.T) {
	assert.True(t, checkNumericOperand(1.85, Filter{Operand: ">", Target: "1.5"}))
	assert.False(t, checkNumericOperand(1.85, Filter{Operand: "<", Target: "1.5"}))
	assert.True(t, checkNumericOperand(2, Filter{Operand: "=", Target: "2.0"}))
	assert.True(t, checkNumericOperand(2, Filter{Operand: "=", Target: "3", Negate: true}))
	assert.False(t, checkNumericOperand(2, Filter{Operand: "=", Target: "two"}))
	assert.False(t, checkNumericOperand(2, Filter{Operand: "^", Target: "2"}))
}

func oddsRows() store.Rows {
	return store.Rows{
		{"player_1": "Carlos Alcaraz", "odds_1": 1.45, "bookmaker": "Unibet", "rank": int64(3), "created_at": "2025-03-04T12:00:00Z"},
		{"player_1": "Carlos Alcaraz", "odds_1": 1.5, "bookmaker": "Winamax", "rank": int64(1), "created_at": "2025-03-04T12:00:00Z"},
		{"player_1": "Jannik Sinner", "odds_1": 1.9, "bookmaker": "Unibet", "rank": nil, "created_at": "2025-03-04T12:00:00Z"},
	}
}

func TestFilterRows(t *testing.T) {
	al := attrs.Defaults([]string{"player_1", "odds_1", "bookmaker", "rank"})
	require.NoError(t, al.Set("bookmaker:book,!rank"))

	tests := []struct {
		name string
		spec string
		want []string
	}{
		{name: "no filter", spec: "", want: []string{"Unibet", "Winamax", "Unibet"}},
		{name: "by output key", spec: "book=Unibet", want: []string{"Unibet", "Unibet"}},
		{name: "by column", spec: "bookmaker=Winamax", want: []string{"Winamax"}},
		{name: "numeric", spec: "odds_1>1.47", want: []string{"Winamax", "Unibet"}},
		{name: "all must match", spec: "player_1@alcaraz,odds_1<1.47", want: []string{"Unibet"}},
		{name: "nil never matches", spec: "rank<5", want: []string{"Unibet", "Winamax"}},
		{name: "unknown key is ignored", spec: "surface=clay", want: []string{"Unibet", "Winamax", "Unibet"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRows(oddsRows(), al, tt.spec)
			var books []string
			for _, r := range got {
				books = append(books, r["book"].(string))
			}
			assert.Equal(t, tt.want, books)
		})
	}
}

func TestFilterRowsProjection(t *testing.T) {
	al := attrs.Defaults([]string{"player_1"})
	require.NoError(t, al.Set("!rank,*::u"))

	got := FilterRows(oddsRows()[:1], al, "")
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"player_1": "Carlos Alcaraz", "rank": int64(3)}, got[0])
}

func TestFilterRowsTimeAndBool(t *testing.T) {
	rows := store.Rows{
		{"live": true, "commence": time.Date(2025, 3, 5, 14, 30, 0, 0, time.UTC)},
		{"live": false, "commence": time.Date(2025, 3, 6, 14, 30, 0, 0, time.UTC)},
	}
	al := attrs.Defaults([]string{"live", "commence"})

	assert.Len(t, FilterRows(rows, al, "live=true"), 1)
	assert.Len(t, FilterRows(rows, al, "commence^2025-03-06"), 1)
	assert.Len(t, FilterRows(rows, al, "commence>2025-03-05T15"), 1)
}
