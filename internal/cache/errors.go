// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"
)

// ErrMalformedTimestamp means a stored created_at could not be parsed. It is
// never treated as staleness.
var ErrMalformedTimestamp = errors.New("malformed created_at timestamp")

// MalformedTimestampError carries the table and raw value behind an
// ErrMalformedTimestamp.
type MalformedTimestampError struct {
	Table string
	Value string
	Err   error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("table %s: %v %q: %v", e.Table, ErrMalformedTimestamp, e.Value, e.Err)
}

func (e *MalformedTimestampError) Unwrap() []error {
	return []error{ErrMalformedTimestamp, e.Err}
}
