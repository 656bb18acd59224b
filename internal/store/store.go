// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// CreatedAtColumn is the reserved column stamped on every row of a cache fill.
const CreatedAtColumn = "created_at"

// reservedPrefix is used by backends for their own bookkeeping tables.
const reservedPrefix = "_tennisbet"

var (
	ErrNotFound          = errors.New("table not found")
	ErrInvalidTableName  = errors.New("invalid table name")
	ErrUnsupportedValue  = errors.New("unsupported value type")
	ErrUnknownBackend    = errors.New("unknown store backend")
	ErrStoreNotAvailable = errors.New("store is not configured")
)

// Table names are lowercase: SQLite folds identifier case, so "Odds" and
// "odds" would name the same table.
var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Row is a single record of a producer's output. Values must be scalars; see
// Kind for the supported set.
type Row map[string]any

// Rows is an ordered sequence of homogeneous records.
type Rows []Row

// TableInfo describes a stored table without its contents.
type TableInfo struct {
	Name      string
	Rows      int
	CreatedAt string
}

// TableStore is a durable store of named tables. Implementations own all
// physical persistence.
type TableStore interface {
	// Exists reports whether name has ever been written.
	Exists(ctx context.Context, name string) (bool, error)
	// MaxCreatedAt returns the raw created_at value of name without reading
	// its rows. ErrNotFound if the table is absent or empty.
	MaxCreatedAt(ctx context.Context, name string) (string, error)
	// ReadAll returns every row of name in write order.
	ReadAll(ctx context.Context, name string) (Rows, error)
	// Replace creates name or swaps its entire contents. On failure the prior
	// contents are left intact.
	Replace(ctx context.Context, name string, rows Rows) error
	// Tables lists every stored table.
	Tables(ctx context.Context) ([]TableInfo, error)
	Close() error
}

// OpenFunc opens a backend for the location part of a DSN.
type OpenFunc func(ctx context.Context, location string) (TableStore, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]OpenFunc{}
)

// Register makes a backend available under scheme. The empty scheme is used
// for DSNs without a "scheme://" prefix.
func Register(scheme string, fn OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if fn == nil {
		panic("store: Register open func is nil")
	}
	backends[scheme] = fn
}

// Open resolves a backend from dsn and opens it. A bare path selects the
// backend registered for the empty scheme.
func Open(ctx context.Context, dsn string) (TableStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty dsn", ErrStoreNotAvailable)
	}

	scheme, location := "", dsn
	if i := strings.Index(dsn, "://"); i > 0 {
		scheme, location = dsn[:i], dsn[i+3:]
	}

	backendsMu.RLock()
	fn, ok := backends[scheme]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, scheme)
	}
	return fn(ctx, location)
}

// ValidateName rejects names that cannot be used as a table identifier.
func ValidateName(name string) error {
	if !tableNameRegex.MatchString(name) || strings.HasPrefix(name, reservedPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}

// Columns returns the union of column names across rows, sorted, with
// created_at moved to the end.
func (r Rows) Columns() []string {
	seen := map[string]struct{}{}
	for _, row := range r {
		for k := range row {
			seen[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(seen))
	stamped := false
	for k := range seen {
		if k == CreatedAtColumn {
			stamped = true
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	if stamped {
		cols = append(cols, CreatedAtColumn)
	}
	return cols
}

// Kind names the storage class of a supported value.
type Kind string

const (
	KindNull Kind = "null"
	KindText Kind = "text"
	KindInt  Kind = "int"
	KindReal Kind = "real"
	KindBool Kind = "bool"
	KindTime Kind = "time"
)

// KindOf classifies v, returning ErrUnsupportedValue for anything that is not
// a scalar.
func KindOf(v any) (Kind, error) {
	switch v.(type) {
	case nil:
		return KindNull, nil
	case string:
		return KindText, nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return KindInt, nil
	case float32, float64:
		return KindReal, nil
	case bool:
		return KindBool, nil
	case time.Time:
		return KindTime, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}
