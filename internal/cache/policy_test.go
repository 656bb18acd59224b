// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "weekly", want: CalendarWeek{}},
		{in: " Week ", want: CalendarWeek{}},
		{in: "iso-week", want: CalendarWeek{}},
		{in: "1h", want: Rolling{Window: time.Hour}},
		{in: "90m", want: Rolling{Window: 90 * time.Minute}},
		{in: "", wantErr: true},
		{in: "0s", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "fortnightly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRollingFresh(t *testing.T) {
	p := Rolling{Window: time.Hour}
	at := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

	assert.True(t, p.Fresh(at, at))
	assert.True(t, p.Fresh(at, at.Add(59*time.Minute)))
	assert.False(t, p.Fresh(at, at.Add(time.Hour)))
	assert.False(t, p.Fresh(at, at.Add(61*time.Minute)))
	assert.Equal(t, "rolling 1h0m0s", p.String())
}

func TestCalendarWeekUsesNowLocation(t *testing.T) {
	paris := time.FixedZone("CET", 3600)

	// Sunday 23:30 UTC is already Monday in Paris.
	createdAt := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)
	now := time.Date(2025, 3, 10, 1, 0, 0, 0, paris)
	assert.True(t, CalendarWeek{}.Fresh(createdAt, now))

	// The same instant viewed from UTC still belongs to the prior week.
	assert.False(t, CalendarWeek{}.Fresh(createdAt, now.UTC().Add(30*time.Minute)))
}
