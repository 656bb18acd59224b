// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"fmt"
	"strings"
	"time"
)

// Policy decides whether a table stamped at createdAt may still be served at
// now.
type Policy interface {
	Fresh(createdAt, now time.Time) bool
	String() string
}

// Rolling keeps a table for Window after it was written.
type Rolling struct {
	Window time.Duration
}

func (p Rolling) Fresh(createdAt, now time.Time) bool {
	return now.Sub(createdAt) < p.Window
}

func (p Rolling) String() string {
	return "rolling " + p.Window.String()
}

// CalendarWeek keeps a table until the ISO week (Monday start) changes. Two
// instants six days apart in the same week share a table; two instants
// minutes apart across Sunday midnight do not. The week is evaluated in now's
// location.
type CalendarWeek struct{}

func (CalendarWeek) Fresh(createdAt, now time.Time) bool {
	cy, cw := createdAt.In(now.Location()).ISOWeek()
	ny, nw := now.ISOWeek()
	return cy == ny && cw == nw
}

func (CalendarWeek) String() string {
	return "calendar week"
}

// ParsePolicy reads a policy from configuration. "weekly" (or "week",
// "calendar-week", "iso-week") selects CalendarWeek; a positive Go duration
// such as "1h" or "90m" selects Rolling.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "week", "calendar-week", "iso-week":
		return CalendarWeek{}, nil
	case "":
		return nil, fmt.Errorf("empty cache policy")
	}

	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid cache policy %q: %w", s, err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("invalid cache policy %q: window must be positive", s)
	}
	return Rolling{Window: d}, nil
}
